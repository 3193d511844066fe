package notify

import (
	"context"
	"time"

	"github.com/duka-app/dukago/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Store reads and settles outbox rows.
type Store interface {
	NextUnsent(ctx context.Context, limit int) ([]models.Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentVia []string) error
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error)
}

// GormStore is the Postgres-backed outbox store.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store around the given connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// NextUnsent returns the oldest pending rows, oldest first.
func (s *GormStore) NextUnsent(ctx context.Context, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Notification
	err := s.db.WithContext(ctx).
		Where("sent = ?", false).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// MarkSent settles a row, recording which channels actually delivered.
func (s *GormStore) MarkSent(ctx context.Context, id uuid.UUID, sentVia []string) error {
	return s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"sent":     true,
			"sent_at":  time.Now().UTC(),
			"sent_via": datatypes.NewJSONSlice(sentVia),
		}).Error
}

// ListForUser returns a user's recent notifications, newest first.
func (s *GormStore) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
