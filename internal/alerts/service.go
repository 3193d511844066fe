// Package alerts keeps at most one unresolved stock alert and one
// unresolved expiry alert per item, converging with the item's real stock
// state after every accepted mutation.
package alerts

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/duka-app/dukago/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const dayMillis = int64(24 * time.Hour / time.Millisecond)

// Store persists alerts together with their notification outbox rows. The
// outbox slice is written in the same transaction as the alert, so
// alert-state correctness never depends on delivery.
type Store interface {
	FindOpen(ctx context.Context, itemID uuid.UUID, category string) (*models.Alert, error)
	Create(ctx context.Context, alert *models.Alert, outbox []models.Notification) error
	Update(ctx context.Context, alert *models.Alert, outbox []models.Notification) error
}

// ItemSource provides the item reads the state machine needs.
type ItemSource interface {
	Get(ctx context.Context, businessID, itemID uuid.UUID) (*models.Item, error)
	ListExpiring(ctx context.Context, within time.Duration) ([]models.Item, error)
	ListAll(ctx context.Context) ([]models.Item, error)
}

// Recipients resolves who gets notified for a business.
type Recipients interface {
	ListAlertRecipients(ctx context.Context, businessID uuid.UUID) ([]models.User, error)
}

// Service is the alert state machine.
type Service struct {
	store        Store
	items        ItemSource
	users        Recipients
	expiryWindow time.Duration
}

// NewService creates the alert service. expiryHorizonDays is how far ahead
// the expiry sweep looks.
func NewService(store Store, items ItemSource, users Recipients, expiryHorizonDays int) *Service {
	if expiryHorizonDays <= 0 {
		expiryHorizonDays = 7
	}
	return &Service{
		store:        store,
		items:        items,
		users:        users,
		expiryWindow: time.Duration(expiryHorizonDays) * 24 * time.Hour,
	}
}

// CheckThreshold runs the stock transition rules for one item. It is
// called synchronously after every accepted quantity mutation, with the
// quantity that mutation produced.
func (s *Service) CheckThreshold(ctx context.Context, businessID, itemID uuid.UUID, currentQuantity int) error {
	item, err := s.items.Get(ctx, businessID, itemID)
	if err != nil {
		return err
	}

	existing, err := s.store.FindOpen(ctx, itemID, models.AlertCategoryStock)
	if err != nil {
		return err
	}

	switch {
	case currentQuantity == 0:
		if existing != nil && existing.Type != models.AlertOutOfStock {
			// Escalate the open low-stock alert in place.
			existing.Type = models.AlertOutOfStock
			existing.Severity = models.SeverityCritical
			existing.Message = fmt.Sprintf("%s is out of stock", item.Name)
			existing.CurrentQuantity = currentQuantity
			outbox, err := s.buildOutbox(ctx, existing, item)
			if err != nil {
				return err
			}
			return s.store.Update(ctx, existing, outbox)
		}
		if existing == nil {
			return s.raise(ctx, item, models.AlertOutOfStock, models.SeverityCritical,
				fmt.Sprintf("%s is out of stock", item.Name), currentQuantity, item.MinThreshold)
		}
		return nil

	case currentQuantity <= item.MinThreshold:
		// An open out-of-stock alert is not downgraded on partial
		// recovery; it clears only once stock passes the threshold.
		if existing == nil {
			return s.raise(ctx, item, models.AlertLowStock, models.SeverityWarning,
				fmt.Sprintf("%s is running low (%d %s remaining)", item.Name, currentQuantity, item.Unit),
				currentQuantity, item.MinThreshold)
		}
		return nil

	default:
		if existing != nil {
			existing.Resolve(time.Now().UTC())
			return s.store.Update(ctx, existing, nil)
		}
		return nil
	}
}

// SweepExpiring raises expiry alerts for items whose expiry date falls
// inside the horizon. Safe to run concurrently with live traffic; the
// partial unique index makes a racing double-create lose harmlessly.
func (s *Service) SweepExpiring(ctx context.Context) error {
	items, err := s.items.ListExpiring(ctx, s.expiryWindow)
	if err != nil {
		return err
	}

	for i := range items {
		item := &items[i]
		if item.ExpiryDate == nil {
			continue
		}

		existing, err := s.store.FindOpen(ctx, item.ID, models.AlertCategoryExpiry)
		if err != nil {
			log.Printf("⚠️ Expiry check failed for item %s: %v", item.ID, err)
			continue
		}
		if existing != nil {
			continue
		}

		days := DaysUntil(*item.ExpiryDate, time.Now().UTC())
		severity := models.SeverityWarning
		if days <= 2 {
			severity = models.SeverityCritical
		}

		err = s.raise(ctx, item, models.AlertExpiryWarning, severity,
			fmt.Sprintf("%s expires in %d day(s)", item.Name, days), item.Quantity, 0)
		if err != nil {
			log.Printf("⚠️ Failed to raise expiry alert for item %s: %v", item.ID, err)
		}
	}
	return nil
}

// RecheckAll re-evaluates the stock rules for every item. Periodic safety
// net; idempotent with respect to the per-mutation evaluation.
func (s *Service) RecheckAll(ctx context.Context) error {
	items, err := s.items.ListAll(ctx)
	if err != nil {
		return err
	}
	for i := range items {
		item := &items[i]
		if err := s.CheckThreshold(ctx, item.BusinessID, item.ID, item.Quantity); err != nil {
			log.Printf("⚠️ Threshold recheck failed for item %s: %v", item.ID, err)
		}
	}
	return nil
}

// DaysUntil is the integer day count to an expiry date: remaining
// milliseconds ceiling-divided by a day.
func DaysUntil(expiry, now time.Time) int64 {
	remaining := expiry.Sub(now).Milliseconds()
	if remaining <= 0 {
		return 0
	}
	return (remaining + dayMillis - 1) / dayMillis
}

func (s *Service) raise(ctx context.Context, item *models.Item, alertType, severity, message string, quantity, threshold int) error {
	alert := &models.Alert{
		ID:              uuid.New(), // assigned up front so outbox rows can reference it
		BusinessID:      item.BusinessID,
		ItemID:          item.ID,
		Category:        models.CategoryForAlertType(alertType),
		Type:            alertType,
		Severity:        severity,
		Message:         message,
		CurrentQuantity: quantity,
		Threshold:       threshold,
	}
	outbox, err := s.buildOutbox(ctx, alert, item)
	if err != nil {
		return err
	}
	return s.store.Create(ctx, alert, outbox)
}

// buildOutbox fans the alert out to every owner/admin of the business.
// Channels are in-app + push, plus email when the severity is critical.
func (s *Service) buildOutbox(ctx context.Context, alert *models.Alert, item *models.Item) ([]models.Notification, error) {
	recipients, err := s.users.ListAlertRecipients(ctx, alert.BusinessID)
	if err != nil {
		return nil, err
	}

	title := "Inventory Alert"
	if alert.Severity == models.SeverityCritical {
		title = "Critical Alert"
	}

	channels := []string{models.ChannelInApp, models.ChannelPush}
	if alert.Severity == models.SeverityCritical {
		channels = append(channels, models.ChannelEmail)
	}

	outbox := make([]models.Notification, 0, len(recipients))
	for _, user := range recipients {
		alertID := alert.ID
		outbox = append(outbox, models.Notification{
			UserID:     user.ID,
			BusinessID: alert.BusinessID,
			AlertID:    &alertID,
			Type:       alert.Type,
			Title:      title,
			Message:    alert.Message,
			Data: datatypes.JSONMap{
				"itemId":          item.ID.String(),
				"itemName":        item.Name,
				"currentQuantity": alert.CurrentQuantity,
				"threshold":       alert.Threshold,
				"unit":            item.Unit,
			},
			Channels: datatypes.NewJSONSlice(channels),
		})
	}
	return outbox, nil
}
