// Package ledger is the append-only record of quantity deltas. Entries are
// written exactly once when a mutation is accepted; there is no update or
// delete path. The core never replays the ledger to derive quantity, since
// the items table stays authoritative, but the delta sum must always equal
// the current quantity, and VerifyBusiness checks that off the hot path.
package ledger

import (
	"context"
	"time"

	"github.com/duka-app/dukago/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Entry is the input to an append.
type Entry struct {
	ItemID     uuid.UUID
	BusinessID uuid.UUID
	UserID     uuid.UUID
	Delta      int
	Action     string
	Reason     string
}

// Recorder is the narrow write contract the reconciliation engine needs.
type Recorder interface {
	Append(ctx context.Context, e Entry) (*models.InventoryEvent, error)
}

// Store implements the ledger against PostgreSQL.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new ledger store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Append writes one immutable event. The server timestamp is assigned at
// append time.
func (s *Store) Append(ctx context.Context, e Entry) (*models.InventoryEvent, error) {
	event := models.InventoryEvent{
		ItemID:     e.ItemID,
		BusinessID: e.BusinessID,
		UserID:     e.UserID,
		Delta:      e.Delta,
		Action:     e.Action,
		Reason:     e.Reason,
	}
	if event.Action == "" {
		event.Action = models.ActionAdjusted
	}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// ListByItem returns events for one item, newest first.
func (s *Store) ListByItem(ctx context.Context, businessID, itemID uuid.UUID, limit int) ([]models.InventoryEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var events []models.InventoryEvent
	err := s.db.WithContext(ctx).
		Where("business_id = ? AND item_id = ?", businessID, itemID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// ListByBusiness returns events for a business since a timestamp, oldest
// first. Consumed by reporting and by clients catching up after a sync.
func (s *Store) ListByBusiness(ctx context.Context, businessID uuid.UUID, since time.Time) ([]models.InventoryEvent, error) {
	var events []models.InventoryEvent
	err := s.db.WithContext(ctx).
		Where("business_id = ? AND timestamp > ?", businessID, since).
		Order("timestamp ASC").
		Find(&events).Error
	return events, err
}

// VerifyResult is one item's ledger-sum check.
type VerifyResult struct {
	ItemID     uuid.UUID `json:"item_id"`
	Quantity   int       `json:"quantity"`
	DeltaSum   int64     `json:"delta_sum"`
	Consistent bool      `json:"consistent"`
}

// VerifyBusiness recomputes the delta sum per item and compares it with
// the live quantity. Creation stock is itself recorded as an initial
// "added" event, so the two must match at any serialized point.
func (s *Store) VerifyBusiness(ctx context.Context, businessID uuid.UUID) ([]VerifyResult, error) {
	var results []VerifyResult
	err := s.db.WithContext(ctx).Raw(`
		SELECT i.id AS item_id,
		       i.quantity AS quantity,
		       COALESCE(SUM(e.delta), 0) AS delta_sum,
		       i.quantity = COALESCE(SUM(e.delta), 0) AS consistent
		FROM items i
		LEFT JOIN inventory_events e ON e.item_id = i.id
		WHERE i.business_id = ? AND i.deleted_at IS NULL
		GROUP BY i.id, i.quantity`,
		businessID,
	).Scan(&results).Error
	return results, err
}
