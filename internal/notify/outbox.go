package notify

import (
	"context"
	"log"
	"time"

	"github.com/duka-app/dukago/internal/messaging"
	"github.com/duka-app/dukago/internal/models"
	"github.com/google/uuid"
)

// InAppSender pushes a payload to a user's live sessions.
type InAppSender interface {
	SendToUser(userID uuid.UUID, message interface{}) bool
}

// Mailer sends email notifications. The default implementation only
// logs; SMTP wiring is left to deployments that need it.
type Mailer interface {
	Send(ctx context.Context, n *models.Notification) error
}

// LogMailer logs instead of sending.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, n *models.Notification) error {
	log.Printf("📧 Email notification for user %s: %s", n.UserID, n.Title)
	return nil
}

// Worker drains the notification outbox on a fixed interval and fans
// each row out to its requested channels.
type Worker struct {
	store    Store
	inApp    InAppSender
	push     messaging.PushProducer
	mailer   Mailer
	interval time.Duration
}

// NewWorker creates an outbox worker
func NewWorker(store Store, inApp InAppSender, push messaging.PushProducer, mailer Mailer, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &Worker{store: store, inApp: inApp, push: push, mailer: mailer, interval: interval}
}

// Run drains the outbox until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.Printf("📬 Notification outbox worker started (interval=%s)", w.interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("📬 Notification outbox worker stopped")
			return
		case <-ticker.C:
			if err := w.DrainOnce(ctx); err != nil {
				log.Printf("⚠️ Outbox drain failed: %v", err)
			}
		}
	}
}

// DrainOnce processes one batch of pending rows. A row is settled even
// when some channels fail; delivery is at-most-once per channel and
// failures are logged rather than retried forever.
func (w *Worker) DrainOnce(ctx context.Context) error {
	pending, err := w.store.NextUnsent(ctx, 50)
	if err != nil {
		return err
	}

	for i := range pending {
		n := &pending[i]
		sentVia := w.dispatch(ctx, n)
		if err := w.store.MarkSent(ctx, n.ID, sentVia); err != nil {
			log.Printf("⚠️ Failed to settle notification %s: %v", n.ID, err)
		}
	}
	return nil
}

func (w *Worker) dispatch(ctx context.Context, n *models.Notification) []string {
	sentVia := make([]string, 0, len(n.Channels))
	for _, channel := range n.Channels {
		switch channel {
		case models.ChannelInApp:
			if w.inApp != nil && w.inApp.SendToUser(n.UserID, n) {
				sentVia = append(sentVia, models.ChannelInApp)
			}
		case models.ChannelPush:
			if w.push == nil {
				continue
			}
			if err := w.push.PublishPushIntent(ctx, n); err != nil {
				log.Printf("⚠️ Push publish failed for notification %s: %v", n.ID, err)
				continue
			}
			sentVia = append(sentVia, models.ChannelPush)
		case models.ChannelEmail:
			if err := w.mailer.Send(ctx, n); err != nil {
				log.Printf("⚠️ Email send failed for notification %s: %v", n.ID, err)
				continue
			}
			sentVia = append(sentVia, models.ChannelEmail)
		default:
			log.Printf("⚠️ Unknown notification channel: %s", channel)
		}
	}
	return sentVia
}
