// Package stock owns the quantity counter of every item. All stock-level
// changes in the system funnel through Store; the conditional UPDATE that
// backs it is the only concurrency boundary the reconciliation core needs.
package stock

import (
	"context"
	"errors"
	"time"

	"github.com/duka-app/dukago/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrNotFound means the item does not exist in this business.
	ErrNotFound = errors.New("item not found")

	// ErrInsufficientStock means the delta would drive quantity below zero.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrStaleVersion means the caller's read version no longer matches.
	ErrStaleVersion = errors.New("stale item version")
)

// Mutation is the outcome of a successful quantity change.
type Mutation struct {
	Quantity  int       `json:"quantity"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the quantity store contract. Adjust is the ledger-driven path:
// it re-reads and writes atomically in a single statement, with no version
// precondition. Mutate is the update path: it additionally requires the
// version the caller read, rejecting stale writes.
type Store interface {
	Get(ctx context.Context, businessID, itemID uuid.UUID) (*models.Item, error)
	Adjust(ctx context.Context, businessID, itemID uuid.UUID, delta int) (Mutation, error)
	Mutate(ctx context.Context, businessID, itemID uuid.UUID, delta int, expectedVersion int64) (Mutation, error)
}

// GormStore implements Store against PostgreSQL.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new quantity store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Get returns an item scoped to a business.
func (s *GormStore) Get(ctx context.Context, businessID, itemID uuid.UUID) (*models.Item, error) {
	var item models.Item
	err := s.db.WithContext(ctx).
		Where("id = ? AND business_id = ?", itemID, businessID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Adjust applies a signed delta atomically. The quantity check, the
// increment and the version bump happen in one statement, so two
// concurrent adjustments can never both apply against a stale read.
func (s *GormStore) Adjust(ctx context.Context, businessID, itemID uuid.UUID, delta int) (Mutation, error) {
	var row Mutation
	res := s.db.WithContext(ctx).Raw(`
		UPDATE items
		SET quantity = quantity + ?, version = version + 1, updated_at = ?
		WHERE id = ? AND business_id = ? AND deleted_at IS NULL AND quantity + ? >= 0
		RETURNING quantity, version, updated_at`,
		delta, time.Now().UTC(), itemID, businessID, delta,
	).Scan(&row)
	if res.Error != nil {
		return Mutation{}, res.Error
	}
	if res.RowsAffected == 0 {
		return Mutation{}, s.classify(ctx, businessID, itemID, delta, nil)
	}
	return row, nil
}

// Mutate applies a signed delta with an optimistic version check. It fails
// with ErrStaleVersion when the stored version no longer matches the one
// the caller read.
func (s *GormStore) Mutate(ctx context.Context, businessID, itemID uuid.UUID, delta int, expectedVersion int64) (Mutation, error) {
	var row Mutation
	res := s.db.WithContext(ctx).Raw(`
		UPDATE items
		SET quantity = quantity + ?, version = version + 1, updated_at = ?
		WHERE id = ? AND business_id = ? AND deleted_at IS NULL AND version = ? AND quantity + ? >= 0
		RETURNING quantity, version, updated_at`,
		delta, time.Now().UTC(), itemID, businessID, expectedVersion, delta,
	).Scan(&row)
	if res.Error != nil {
		return Mutation{}, res.Error
	}
	if res.RowsAffected == 0 {
		return Mutation{}, s.classify(ctx, businessID, itemID, delta, &expectedVersion)
	}
	return row, nil
}

// classify turns a zero-row conditional update into the right sentinel.
func (s *GormStore) classify(ctx context.Context, businessID, itemID uuid.UUID, delta int, expectedVersion *int64) error {
	item, err := s.Get(ctx, businessID, itemID)
	if err != nil {
		return err
	}
	if expectedVersion != nil && item.Version != *expectedVersion {
		return ErrStaleVersion
	}
	if item.Quantity+delta < 0 {
		return ErrInsufficientStock
	}
	// The row changed between the update and the re-read. Treat it as a
	// stale read; the caller may retry.
	return ErrStaleVersion
}

// SaveVersioned persists item metadata with an optimistic version check.
// Quantity is deliberately not part of the update set: stock levels change
// only through Adjust/Mutate.
func (s *GormStore) SaveVersioned(ctx context.Context, item *models.Item, expectedVersion int64) error {
	res := s.db.WithContext(ctx).Model(&models.Item{}).
		Where("id = ? AND business_id = ? AND version = ?", item.ID, item.BusinessID, expectedVersion).
		Updates(map[string]interface{}{
			"name":          item.Name,
			"sku":           item.SKU,
			"description":   item.Description,
			"unit":          item.Unit,
			"category":      item.Category,
			"location":      item.Location,
			"tags":          item.Tags,
			"min_threshold": item.MinThreshold,
			"image":         item.Image,
			"expiry_date":   item.ExpiryDate,
			"version":       gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.Get(ctx, item.BusinessID, item.ID); err != nil {
			return err
		}
		return ErrStaleVersion
	}
	return nil
}

// ListExpiring returns items whose expiry date falls inside the horizon,
// ignoring already expired stock.
func (s *GormStore) ListExpiring(ctx context.Context, within time.Duration) ([]models.Item, error) {
	now := time.Now().UTC()
	var items []models.Item
	err := s.db.WithContext(ctx).
		Where("expiry_date IS NOT NULL AND expiry_date >= ? AND expiry_date <= ?", now, now.Add(within)).
		Find(&items).Error
	return items, err
}

// ListAll returns every live item. Used by the periodic threshold recheck.
func (s *GormStore) ListAll(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	err := s.db.WithContext(ctx).Find(&items).Error
	return items, err
}
