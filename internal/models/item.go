package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Item units
const (
	UnitPiece  = "pcs"
	UnitWeight = "kg"
	UnitVolume = "ltr"
)

// ValidUnit reports whether u is a known stock unit.
func ValidUnit(u string) bool {
	return u == UnitPiece || u == UnitWeight || u == UnitVolume
}

// Item is one inventory unit belonging to a business.
//
// Quantity is the single source of truth for the stock level. It is only
// ever changed through the stock store's conditional update, which bumps
// Version in the same statement. Callers never write Quantity directly.
type Item struct {
	ID           uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	BusinessID   uuid.UUID                   `gorm:"type:uuid;not null;index:idx_items_business_name;index:idx_items_business_category;index:idx_items_business_stock" json:"business_id"`
	Name         string                      `gorm:"not null;index:idx_items_business_name" json:"name"`
	SKU          string                      `json:"sku,omitempty"`
	Description  string                      `json:"description,omitempty"`
	Quantity     int                         `gorm:"not null;default:0;index:idx_items_business_stock" json:"quantity"`
	Unit         string                      `gorm:"type:varchar(10);not null;default:'pcs'" json:"unit"`
	Category     string                      `gorm:"index:idx_items_business_category" json:"category,omitempty"`
	Location     string                      `json:"location,omitempty"`
	Tags         datatypes.JSONSlice[string] `json:"tags"`
	MinThreshold int                         `gorm:"not null;default:0;index:idx_items_business_stock" json:"min_threshold"`
	Image        string                      `json:"image,omitempty"`
	ExpiryDate   *time.Time                  `gorm:"index" json:"expiry_date,omitempty"`

	// Optimistic concurrency: bumped on every write, checked on the
	// update path. See stock.Store.
	Version int64 `gorm:"not null;default:1" json:"version"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name
func (Item) TableName() string {
	return "items"
}

// BeforeCreate hook
func (i *Item) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.Unit == "" {
		i.Unit = UnitPiece
	}
	if i.Version == 0 {
		i.Version = 1
	}
	return nil
}

// IsLowStock reports whether the item sits at or below its threshold.
func (i *Item) IsLowStock() bool {
	return i.Quantity <= i.MinThreshold
}
