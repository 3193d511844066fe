package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Business is the tenant boundary. Every item, tag, event and alert is
// scoped to exactly one business.
type Business struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string    `gorm:"not null" json:"name"`
	Location     string    `json:"location,omitempty"`
	ContactPhone string    `json:"contact_phone,omitempty"`
	Language     string    `gorm:"type:varchar(5);default:'en'" json:"language"` // en, am, om
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name
func (Business) TableName() string {
	return "businesses"
}

// BeforeCreate hook
func (b *Business) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
