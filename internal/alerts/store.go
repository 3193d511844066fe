package alerts

import (
	"context"
	"errors"
	"time"

	"github.com/duka-app/dukago/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrAlertNotFound is returned by Resolve for an unknown alert id.
var ErrAlertNotFound = errors.New("alert not found")

// GormStore implements Store and Recipients against PostgreSQL.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new alert store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// FindOpen returns the unresolved alert for an item in one category, or
// nil when there is none. The partial unique index guarantees at most one.
func (s *GormStore) FindOpen(ctx context.Context, itemID uuid.UUID, category string) (*models.Alert, error) {
	var alert models.Alert
	err := s.db.WithContext(ctx).
		Where("item_id = ? AND category = ? AND is_resolved = false", itemID, category).
		First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// Create inserts the alert and its outbox rows in one transaction.
func (s *GormStore) Create(ctx context.Context, alert *models.Alert, outbox []models.Notification) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(alert).Error; err != nil {
			return err
		}
		if len(outbox) > 0 {
			if err := tx.Create(&outbox).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Update saves alert changes and any new outbox rows in one transaction.
func (s *GormStore) Update(ctx context.Context, alert *models.Alert, outbox []models.Notification) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(alert).Error; err != nil {
			return err
		}
		if len(outbox) > 0 {
			if err := tx.Create(&outbox).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ListByBusiness returns a business's alerts, newest first.
func (s *GormStore) ListByBusiness(ctx context.Context, businessID uuid.UUID, includeResolved bool) ([]models.Alert, error) {
	q := s.db.WithContext(ctx).Where("business_id = ?", businessID)
	if !includeResolved {
		q = q.Where("is_resolved = false")
	}
	var alerts []models.Alert
	err := q.Order("created_at DESC").Find(&alerts).Error
	return alerts, err
}

// Resolve marks an alert resolved by id.
func (s *GormStore) Resolve(ctx context.Context, businessID, alertID uuid.UUID) (*models.Alert, error) {
	var alert models.Alert
	err := s.db.WithContext(ctx).
		Where("id = ? AND business_id = ?", alertID, businessID).
		First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, err
	}
	if !alert.IsResolved {
		alert.Resolve(time.Now().UTC())
		if err := s.db.WithContext(ctx).Save(&alert).Error; err != nil {
			return nil, err
		}
	}
	return &alert, nil
}

// ListAlertRecipients returns the owners and admins of a business.
func (s *GormStore) ListAlertRecipients(ctx context.Context, businessID uuid.UUID) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Where("business_id = ? AND role IN ?", businessID, []string{models.RoleOwner, models.RoleAdmin}).
		Find(&users).Error
	return users, err
}
