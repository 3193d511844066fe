package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/duka-app/dukago/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type memOutbox struct {
	rows    []models.Notification
	sentVia map[uuid.UUID][]string
}

func newMemOutbox() *memOutbox {
	return &memOutbox{sentVia: map[uuid.UUID][]string{}}
}

func (m *memOutbox) NextUnsent(_ context.Context, limit int) ([]models.Notification, error) {
	var out []models.Notification
	for _, row := range m.rows {
		if !row.Sent && len(out) < limit {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memOutbox) MarkSent(_ context.Context, id uuid.UUID, sentVia []string) error {
	for i := range m.rows {
		if m.rows[i].ID == id {
			m.rows[i].Sent = true
			m.sentVia[id] = sentVia
			return nil
		}
	}
	return errors.New("row not found")
}

func (m *memOutbox) ListForUser(_ context.Context, userID uuid.UUID, _ int) ([]models.Notification, error) {
	var out []models.Notification
	for _, row := range m.rows {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	return out, nil
}

type recordingSender struct {
	online    bool
	delivered []uuid.UUID
}

func (r *recordingSender) SendToUser(userID uuid.UUID, _ interface{}) bool {
	if r.online {
		r.delivered = append(r.delivered, userID)
	}
	return r.online
}

type recordingProducer struct {
	published []uuid.UUID
	fail      bool
}

func (r *recordingProducer) PublishPushIntent(_ context.Context, n *models.Notification) error {
	if r.fail {
		return errors.New("broker unavailable")
	}
	r.published = append(r.published, n.ID)
	return nil
}

func (r *recordingProducer) Close() error { return nil }

func notificationRow(channels ...string) models.Notification {
	return models.Notification{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		Type:     models.AlertLowStock,
		Title:    "Inventory Alert",
		Message:  "Rice is running low",
		Channels: datatypes.NewJSONSlice(channels),
	}
}

func TestDrainOnceDeliversAllChannels(t *testing.T) {
	store := newMemOutbox()
	row := notificationRow(models.ChannelInApp, models.ChannelPush, models.ChannelEmail)
	store.rows = append(store.rows, row)

	sender := &recordingSender{online: true}
	producer := &recordingProducer{}
	worker := NewWorker(store, sender, producer, LogMailer{}, time.Second)

	require.NoError(t, worker.DrainOnce(context.Background()))

	assert.True(t, store.rows[0].Sent)
	assert.ElementsMatch(t,
		[]string{models.ChannelInApp, models.ChannelPush, models.ChannelEmail},
		store.sentVia[row.ID])
	assert.Equal(t, []uuid.UUID{row.UserID}, sender.delivered)
	assert.Equal(t, []uuid.UUID{row.ID}, producer.published)
}

func TestDrainOnceSettlesDespitePartialFailure(t *testing.T) {
	store := newMemOutbox()
	row := notificationRow(models.ChannelInApp, models.ChannelPush)
	store.rows = append(store.rows, row)

	// User offline, broker down: the row still settles so the worker
	// does not spin on it forever.
	sender := &recordingSender{online: false}
	producer := &recordingProducer{fail: true}
	worker := NewWorker(store, sender, producer, LogMailer{}, time.Second)

	require.NoError(t, worker.DrainOnce(context.Background()))

	assert.True(t, store.rows[0].Sent)
	assert.Empty(t, store.sentVia[row.ID])
}

func TestDrainOnceSkipsAlreadySent(t *testing.T) {
	store := newMemOutbox()
	row := notificationRow(models.ChannelPush)
	row.Sent = true
	store.rows = append(store.rows, row)

	producer := &recordingProducer{}
	worker := NewWorker(store, &recordingSender{online: true}, producer, LogMailer{}, time.Second)

	require.NoError(t, worker.DrainOnce(context.Background()))
	assert.Empty(t, producer.published)
}

func TestDrainOnceIgnoresUnknownChannel(t *testing.T) {
	store := newMemOutbox()
	row := notificationRow("sms", models.ChannelPush)
	store.rows = append(store.rows, row)

	producer := &recordingProducer{}
	worker := NewWorker(store, &recordingSender{online: true}, producer, LogMailer{}, time.Second)

	require.NoError(t, worker.DrainOnce(context.Background()))

	assert.True(t, store.rows[0].Sent)
	assert.Equal(t, []string{models.ChannelPush}, store.sentVia[row.ID])
}
