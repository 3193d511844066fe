package sync

import (
	"context"
	"errors"
	"time"

	"github.com/duka-app/dukago/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OpStore persists idempotency records. Record must rely on the storage
// layer's unique (business_id, op_id) constraint rather than
// check-then-insert, so two identical retransmissions arriving
// concurrently cannot both win.
type OpStore interface {
	Find(ctx context.Context, businessID uuid.UUID, opID string) (*models.SyncOperation, error)
	Record(ctx context.Context, op *models.SyncOperation) error
	ListAppliedSince(ctx context.Context, businessID uuid.UUID, since time.Time) ([]models.SyncOperation, error)
	ListConflicts(ctx context.Context, businessID uuid.UUID, limit int) ([]models.SyncOperation, error)
	Deduplicate(ctx context.Context, businessID uuid.UUID) (int64, error)
	PurgeOlderThan(ctx context.Context, days int) (int64, error)
}

// GormOpStore implements OpStore against PostgreSQL.
type GormOpStore struct {
	db *gorm.DB
}

// NewGormOpStore creates a new idempotency record store
func NewGormOpStore(db *gorm.DB) *GormOpStore {
	return &GormOpStore{db: db}
}

// Find returns the stored outcome for an operation id, or nil when unseen.
func (s *GormOpStore) Find(ctx context.Context, businessID uuid.UUID, opID string) (*models.SyncOperation, error) {
	var op models.SyncOperation
	err := s.db.WithContext(ctx).
		Where("business_id = ? AND op_id = ?", businessID, opID).
		First(&op).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// Record inserts the idempotency record. A unique-index violation maps to
// ErrDuplicateOp so the caller can fall back to the stored outcome.
func (s *GormOpStore) Record(ctx context.Context, op *models.SyncOperation) error {
	err := s.db.WithContext(ctx).Create(op).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateOp
	}
	return err
}

// ListAppliedSince returns applied operations after a timestamp, oldest
// first. This is the pull side of the sync protocol.
func (s *GormOpStore) ListAppliedSince(ctx context.Context, businessID uuid.UUID, since time.Time) ([]models.SyncOperation, error) {
	var ops []models.SyncOperation
	err := s.db.WithContext(ctx).
		Where("business_id = ? AND applied_at > ? AND status = ?", businessID, since, models.SyncStatusApplied).
		Order("applied_at ASC").
		Find(&ops).Error
	return ops, err
}

// ListConflicts returns the most recent conflicted operations.
func (s *GormOpStore) ListConflicts(ctx context.Context, businessID uuid.UUID, limit int) ([]models.SyncOperation, error) {
	if limit <= 0 {
		limit = 100
	}
	var ops []models.SyncOperation
	err := s.db.WithContext(ctx).
		Where("business_id = ? AND status = ?", businessID, models.SyncStatusConflict).
		Order("applied_at DESC").
		Limit(limit).
		Find(&ops).Error
	return ops, err
}

// Deduplicate removes redundant rows sharing an op_id, keeping the oldest.
// The unique index prevents new duplicates; this cleans up records that
// predate it.
func (s *GormOpStore) Deduplicate(ctx context.Context, businessID uuid.UUID) (int64, error) {
	res := s.db.WithContext(ctx).Exec(`
		DELETE FROM sync_operations a
		USING sync_operations b
		WHERE a.business_id = ?
		  AND b.business_id = a.business_id
		  AND b.op_id = a.op_id
		  AND a.ctid > b.ctid`,
		businessID,
	)
	return res.RowsAffected, res.Error
}

// PurgeOlderThan deletes records applied before the retention cutoff.
func (s *GormOpStore) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	res := s.db.WithContext(ctx).
		Where("applied_at < ?", cutoff).
		Delete(&models.SyncOperation{})
	return res.RowsAffected, res.Error
}
