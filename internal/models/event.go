package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Inventory event actions
const (
	ActionAdded    = "added"
	ActionSold     = "sold"
	ActionUsed     = "used"
	ActionAdjusted = "adjusted"
)

// ValidAction reports whether a is a known inventory action.
func ValidAction(a string) bool {
	switch a {
	case ActionAdded, ActionSold, ActionUsed, ActionAdjusted:
		return true
	}
	return false
}

// InventoryEvent is one immutable ledger entry: a signed quantity delta
// with causal metadata. Rows are appended when a mutation is accepted and
// never updated or deleted afterwards. The ledger is an audit artifact;
// the item's quantity column stays authoritative.
type InventoryEvent struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ItemID     uuid.UUID `gorm:"type:uuid;not null;index:idx_events_item_ts,priority:1" json:"item_id"`
	BusinessID uuid.UUID `gorm:"type:uuid;not null;index:idx_events_business_ts,priority:1" json:"business_id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index:idx_events_user_ts,priority:1" json:"user_id"`
	Delta      int       `gorm:"not null" json:"delta"`
	Action     string    `gorm:"type:varchar(10);not null" json:"action"`
	Reason     string    `json:"reason,omitempty"`
	Timestamp  time.Time `gorm:"not null;index:idx_events_item_ts,priority:2,sort:desc;index:idx_events_business_ts,priority:2,sort:desc;index:idx_events_user_ts,priority:2,sort:desc" json:"timestamp"`
}

// TableName specifies the table name
func (InventoryEvent) TableName() string {
	return "inventory_events"
}

// BeforeCreate hook assigns the server timestamp at append time.
func (e *InventoryEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return nil
}
