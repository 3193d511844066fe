package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification channels
const (
	ChannelInApp = "in_app"
	ChannelPush  = "push"
	ChannelEmail = "email"
)

// Notification is one outbox row: an alert fan-out intent for a single
// recipient. It is written in the same transaction as the alert it refers
// to; a separate worker drains unsent rows and performs the actual
// delivery, so alert-state correctness never depends on delivery.
type Notification struct {
	ID         uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID                   `gorm:"type:uuid;not null;index" json:"user_id"`
	BusinessID uuid.UUID                   `gorm:"type:uuid;not null;index" json:"business_id"`
	AlertID    *uuid.UUID                  `gorm:"type:uuid;index" json:"alert_id,omitempty"`
	Type       string                      `gorm:"type:varchar(20);not null" json:"type"`
	Title      string                      `gorm:"not null" json:"title"`
	Message    string                      `gorm:"not null" json:"message"`
	Data       datatypes.JSONMap           `json:"data,omitempty"`
	Channels   datatypes.JSONSlice[string] `json:"channels"`
	SentVia    datatypes.JSONSlice[string] `json:"sent_via"`
	Sent       bool                        `gorm:"not null;default:false;index:idx_notifications_outbox,priority:1" json:"sent"`
	SentAt     *time.Time                  `json:"sent_at,omitempty"`
	CreatedAt  time.Time                   `gorm:"index:idx_notifications_outbox,priority:2" json:"created_at"`
}

// TableName specifies the table name
func (Notification) TableName() string {
	return "notifications"
}

// BeforeCreate hook
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
