package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Sync operation outcomes
const (
	SyncStatusApplied  = "applied"
	SyncStatusConflict = "conflict"
	SyncStatusFailed   = "failed"
)

// SyncOperation is the idempotency record for one client-submitted
// operation. The unique index on (business_id, op_id) is what makes
// concurrent retransmissions safe: the losing insert re-reads the stored
// outcome instead of applying side effects twice. Rows are never mutated
// after creation; retention cleanup removes them after a grace window.
type SyncOperation struct {
	ID              uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	OpID            string            `gorm:"type:varchar(255);not null;uniqueIndex:ux_syncops_business_op" json:"op_id"`
	BusinessID      uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:ux_syncops_business_op;index:idx_syncops_business_applied,priority:1" json:"business_id"`
	UserID          uuid.UUID         `gorm:"type:uuid;not null" json:"user_id"`
	Type            string            `gorm:"type:varchar(10);not null" json:"type"`        // adjust, create, update, delete
	EntityType      string            `gorm:"type:varchar(20);not null" json:"entity_type"` // item, tag, business
	Payload         datatypes.JSONMap `json:"payload"`
	ClientTimestamp *time.Time        `json:"client_timestamp,omitempty"`
	AppliedAt       time.Time         `gorm:"not null;index:idx_syncops_business_applied,priority:2" json:"applied_at"`
	Source          string            `gorm:"type:varchar(10);not null;default:'client'" json:"source"`
	Status          string            `gorm:"type:varchar(10);not null;index" json:"status"`
	ConflictReason  string            `json:"conflict_reason,omitempty"`
	ItemID          *uuid.UUID        `gorm:"type:uuid;index" json:"item_id,omitempty"` // resulting entity, when the target is an item
	CreatedAt       time.Time         `json:"created_at"`
}

// TableName specifies the table name
func (SyncOperation) TableName() string {
	return "sync_operations"
}

// BeforeCreate hook
func (op *SyncOperation) BeforeCreate(tx *gorm.DB) error {
	if op.ID == uuid.Nil {
		op.ID = uuid.New()
	}
	if op.AppliedAt.IsZero() {
		op.AppliedAt = time.Now().UTC()
	}
	return nil
}
