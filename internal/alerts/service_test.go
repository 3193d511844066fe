package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/duka-app/dukago/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAlertStore struct {
	alerts  []*models.Alert
	outbox  []models.Notification
	creates int
	updates int
}

func (f *fakeAlertStore) FindOpen(_ context.Context, itemID uuid.UUID, category string) (*models.Alert, error) {
	for _, a := range f.alerts {
		if a.ItemID == itemID && a.Category == category && !a.IsResolved {
			return a, nil
		}
	}
	return nil, nil
}

func (f *fakeAlertStore) Create(_ context.Context, alert *models.Alert, outbox []models.Notification) error {
	f.alerts = append(f.alerts, alert)
	f.outbox = append(f.outbox, outbox...)
	f.creates++
	return nil
}

func (f *fakeAlertStore) Update(_ context.Context, alert *models.Alert, outbox []models.Notification) error {
	f.outbox = append(f.outbox, outbox...)
	f.updates++
	return nil
}

type fakeItemSource struct {
	items map[uuid.UUID]*models.Item
}

func (f *fakeItemSource) Get(_ context.Context, _, itemID uuid.UUID) (*models.Item, error) {
	return f.items[itemID], nil
}

func (f *fakeItemSource) ListExpiring(_ context.Context, within time.Duration) ([]models.Item, error) {
	cutoff := time.Now().Add(within)
	var out []models.Item
	for _, item := range f.items {
		if item.ExpiryDate != nil && item.ExpiryDate.Before(cutoff) {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (f *fakeItemSource) ListAll(_ context.Context) ([]models.Item, error) {
	var out []models.Item
	for _, item := range f.items {
		out = append(out, *item)
	}
	return out, nil
}

type fakeRecipients struct {
	users []models.User
}

func (f *fakeRecipients) ListAlertRecipients(context.Context, uuid.UUID) ([]models.User, error) {
	return f.users, nil
}

func newTestService(items ...*models.Item) (*Service, *fakeAlertStore, *fakeItemSource) {
	store := &fakeAlertStore{}
	source := &fakeItemSource{items: map[uuid.UUID]*models.Item{}}
	for _, item := range items {
		source.items[item.ID] = item
	}
	users := &fakeRecipients{users: []models.User{
		{ID: uuid.New(), Role: models.RoleOwner},
		{ID: uuid.New(), Role: models.RoleAdmin},
	}}
	return NewService(store, source, users, 7), store, source
}

func testItem(quantity, threshold int) *models.Item {
	return &models.Item{
		ID:           uuid.New(),
		BusinessID:   uuid.New(),
		Name:         "Maize Flour",
		Unit:         models.UnitPiece,
		Quantity:     quantity,
		MinThreshold: threshold,
	}
}

func TestCheckThresholdRaisesLowStock(t *testing.T) {
	item := testItem(3, 5)
	svc, store, _ := newTestService(item)

	err := svc.CheckThreshold(context.Background(), item.BusinessID, item.ID, 3)
	require.NoError(t, err)

	require.Equal(t, 1, store.creates)
	alert := store.alerts[0]
	assert.Equal(t, models.AlertLowStock, alert.Type)
	assert.Equal(t, models.SeverityWarning, alert.Severity)
	assert.Equal(t, models.AlertCategoryStock, alert.Category)
	assert.Equal(t, 3, alert.CurrentQuantity)
	assert.Equal(t, 5, alert.Threshold)
	assert.False(t, alert.IsResolved)

	// Fan-out goes to both the owner and the admin.
	require.Len(t, store.outbox, 2)
	n := store.outbox[0]
	assert.Equal(t, "Inventory Alert", n.Title)
	assert.ElementsMatch(t, []string{models.ChannelInApp, models.ChannelPush}, []string(n.Channels))
	assert.Equal(t, item.Name, n.Data["itemName"])
}

func TestCheckThresholdRaisesOutOfStock(t *testing.T) {
	item := testItem(0, 5)
	svc, store, _ := newTestService(item)

	err := svc.CheckThreshold(context.Background(), item.BusinessID, item.ID, 0)
	require.NoError(t, err)

	require.Equal(t, 1, store.creates)
	alert := store.alerts[0]
	assert.Equal(t, models.AlertOutOfStock, alert.Type)
	assert.Equal(t, models.SeverityCritical, alert.Severity)

	// Critical alerts add the email channel.
	require.Len(t, store.outbox, 2)
	n := store.outbox[0]
	assert.Equal(t, "Critical Alert", n.Title)
	assert.ElementsMatch(t,
		[]string{models.ChannelInApp, models.ChannelPush, models.ChannelEmail},
		[]string(n.Channels))
}

func TestCheckThresholdEscalatesInPlace(t *testing.T) {
	item := testItem(0, 5)
	svc, store, _ := newTestService(item)

	open := &models.Alert{
		ID:       uuid.New(),
		ItemID:   item.ID,
		Category: models.AlertCategoryStock,
		Type:     models.AlertLowStock,
		Severity: models.SeverityWarning,
	}
	store.alerts = append(store.alerts, open)

	err := svc.CheckThreshold(context.Background(), item.BusinessID, item.ID, 0)
	require.NoError(t, err)

	// Escalation mutates the open alert instead of opening a second one.
	assert.Equal(t, 0, store.creates)
	assert.Equal(t, 1, store.updates)
	assert.Equal(t, models.AlertOutOfStock, open.Type)
	assert.Equal(t, models.SeverityCritical, open.Severity)
	assert.False(t, open.IsResolved)

	// Escalation re-notifies.
	assert.Len(t, store.outbox, 2)
}

func TestCheckThresholdPartialRecoveryKeepsOutOfStock(t *testing.T) {
	item := testItem(3, 5)
	svc, store, _ := newTestService(item)

	open := &models.Alert{
		ID:       uuid.New(),
		ItemID:   item.ID,
		Category: models.AlertCategoryStock,
		Type:     models.AlertOutOfStock,
		Severity: models.SeverityCritical,
	}
	store.alerts = append(store.alerts, open)

	// 0 -> 3 with threshold 5: still at or below threshold, so the
	// out-of-stock alert stays open and is not downgraded.
	err := svc.CheckThreshold(context.Background(), item.BusinessID, item.ID, 3)
	require.NoError(t, err)

	assert.Equal(t, 0, store.creates)
	assert.Equal(t, 0, store.updates)
	assert.Equal(t, models.AlertOutOfStock, open.Type)
	assert.False(t, open.IsResolved)
}

func TestCheckThresholdResolvesAboveThreshold(t *testing.T) {
	item := testItem(10, 5)
	svc, store, _ := newTestService(item)

	open := &models.Alert{
		ID:       uuid.New(),
		ItemID:   item.ID,
		Category: models.AlertCategoryStock,
		Type:     models.AlertOutOfStock,
		Severity: models.SeverityCritical,
	}
	store.alerts = append(store.alerts, open)

	err := svc.CheckThreshold(context.Background(), item.BusinessID, item.ID, 10)
	require.NoError(t, err)

	assert.Equal(t, 1, store.updates)
	assert.True(t, open.IsResolved)
	require.NotNil(t, open.ResolvedAt)

	// Resolution is silent, no new notifications.
	assert.Empty(t, store.outbox)
}

func TestCheckThresholdNoopWhenHealthy(t *testing.T) {
	item := testItem(10, 5)
	svc, store, _ := newTestService(item)

	err := svc.CheckThreshold(context.Background(), item.BusinessID, item.ID, 10)
	require.NoError(t, err)

	assert.Equal(t, 0, store.creates)
	assert.Equal(t, 0, store.updates)
}

func TestCheckThresholdKeepsSingleOpenAlert(t *testing.T) {
	item := testItem(3, 5)
	svc, store, _ := newTestService(item)

	require.NoError(t, svc.CheckThreshold(context.Background(), item.BusinessID, item.ID, 3))
	require.NoError(t, svc.CheckThreshold(context.Background(), item.BusinessID, item.ID, 2))

	// The second low reading reuses the open alert.
	assert.Equal(t, 1, store.creates)
}

func TestSweepExpiringSeverity(t *testing.T) {
	soon := time.Now().Add(36 * time.Hour)
	later := time.Now().Add(5 * 24 * time.Hour)
	farAway := time.Now().Add(60 * 24 * time.Hour)

	critical := testItem(10, 2)
	critical.ExpiryDate = &soon
	warning := testItem(10, 2)
	warning.ExpiryDate = &later
	outside := testItem(10, 2)
	outside.ExpiryDate = &farAway

	svc, store, _ := newTestService(critical, warning, outside)

	err := svc.SweepExpiring(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, store.creates)
	byItem := map[uuid.UUID]*models.Alert{}
	for _, a := range store.alerts {
		byItem[a.ItemID] = a
	}

	require.Contains(t, byItem, critical.ID)
	assert.Equal(t, models.AlertExpiryWarning, byItem[critical.ID].Type)
	assert.Equal(t, models.SeverityCritical, byItem[critical.ID].Severity)
	assert.Equal(t, models.AlertCategoryExpiry, byItem[critical.ID].Category)

	require.Contains(t, byItem, warning.ID)
	assert.Equal(t, models.SeverityWarning, byItem[warning.ID].Severity)

	assert.NotContains(t, byItem, outside.ID)
}

func TestSweepExpiringSkipsOpenAlerts(t *testing.T) {
	soon := time.Now().Add(24 * time.Hour)
	item := testItem(10, 2)
	item.ExpiryDate = &soon

	svc, store, _ := newTestService(item)

	require.NoError(t, svc.SweepExpiring(context.Background()))
	require.NoError(t, svc.SweepExpiring(context.Background()))

	assert.Equal(t, 1, store.creates)
}

func TestExpiryIndependentOfStockAlert(t *testing.T) {
	soon := time.Now().Add(24 * time.Hour)
	item := testItem(1, 5)
	item.ExpiryDate = &soon

	svc, store, _ := newTestService(item)

	require.NoError(t, svc.CheckThreshold(context.Background(), item.BusinessID, item.ID, 1))
	require.NoError(t, svc.SweepExpiring(context.Background()))

	// One stock alert and one expiry alert coexist for the same item.
	require.Equal(t, 2, store.creates)
	categories := map[string]bool{}
	for _, a := range store.alerts {
		categories[a.Category] = true
	}
	assert.True(t, categories[models.AlertCategoryStock])
	assert.True(t, categories[models.AlertCategoryExpiry])
}

func TestDaysUntil(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		expiry time.Time
		want   int64
	}{
		{"already expired", now.Add(-time.Hour), 0},
		{"exactly now", now, 0},
		{"under a day rounds up", now.Add(time.Hour), 1},
		{"exactly two days", now.Add(48 * time.Hour), 2},
		{"two and a half days rounds up", now.Add(60 * time.Hour), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysUntil(tt.expiry, now))
		})
	}
}
