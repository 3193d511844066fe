package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Tag types
const (
	TagTypeItem = "item"
	TagTypeBox  = "box"
)

// Tag is a scannable label (QR) registered to a business, optionally
// attached to an item.
type Tag struct {
	ID             uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	TagID          string             `gorm:"uniqueIndex;not null" json:"tag_id"`
	Type           string             `gorm:"type:varchar(10);not null" json:"type"` // item, box
	BusinessID     uuid.UUID          `gorm:"type:uuid;not null;index" json:"business_id"`
	AttachedItemID *uuid.UUID         `gorm:"type:uuid;index" json:"attached_item_id,omitempty"`
	Meta           datatypes.JSONMap  `json:"meta,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	DeletedAt      gorm.DeletedAt     `gorm:"index" json:"-"`
}

// TableName specifies the table name
func (Tag) TableName() string {
	return "tags"
}

// BeforeCreate hook
func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
