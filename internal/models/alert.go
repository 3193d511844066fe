package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Alert types
const (
	AlertLowStock      = "low_stock"
	AlertOutOfStock    = "out_of_stock"
	AlertExpiryWarning = "expiry_warning"
)

// Alert severities
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert categories. Stock alerts (low/out of stock) and expiry alerts are
// tracked independently; the partial unique index below allows at most one
// unresolved alert per item per category.
const (
	AlertCategoryStock  = "stock"
	AlertCategoryExpiry = "expiry"
)

// Alert is the outstanding stock or expiry condition for an item.
// Uniqueness of the unresolved row is enforced by the database, not by
// query-then-create logic in the application.
type Alert struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	BusinessID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"business_id"`
	ItemID          uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:ux_alerts_open,where:is_resolved = false" json:"item_id"`
	Category        string     `gorm:"type:varchar(10);not null;uniqueIndex:ux_alerts_open,where:is_resolved = false" json:"category"`
	Type            string     `gorm:"type:varchar(20);not null" json:"type"`
	Severity        string     `gorm:"type:varchar(10);not null" json:"severity"`
	Message         string     `gorm:"not null" json:"message"`
	CurrentQuantity int        `json:"current_quantity"`
	Threshold       int        `json:"threshold"`
	IsResolved      bool       `gorm:"not null;default:false" json:"is_resolved"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName specifies the table name
func (Alert) TableName() string {
	return "alerts"
}

// BeforeCreate hook
func (a *Alert) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Category == "" {
		a.Category = CategoryForAlertType(a.Type)
	}
	return nil
}

// CategoryForAlertType maps an alert type to its uniqueness category.
func CategoryForAlertType(alertType string) string {
	if alertType == AlertExpiryWarning {
		return AlertCategoryExpiry
	}
	return AlertCategoryStock
}

// Resolve marks the alert resolved with the given timestamp.
func (a *Alert) Resolve(at time.Time) {
	a.IsResolved = true
	a.ResolvedAt = &at
}
