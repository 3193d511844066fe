package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/duka-app/dukago/internal/models"
	"github.com/segmentio/kafka-go"
)

// PushProducer publishes push notification intents for a downstream
// delivery worker to fan out to devices.
type PushProducer interface {
	PublishPushIntent(ctx context.Context, n *models.Notification) error
	Close() error
}

// KafkaPushProducer writes push intents to a Kafka topic keyed by user,
// so one user's notifications stay ordered within a partition.
type KafkaPushProducer struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaPushProducer creates a producer for the given brokers and topic.
func NewKafkaPushProducer(brokers []string, topic string) *KafkaPushProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Snappy,
	}
	log.Printf("📨 Kafka push producer ready (brokers=%v topic=%s)", brokers, topic)
	return &KafkaPushProducer{writer: writer, topic: topic}
}

// PublishPushIntent sends one notification as a JSON message.
func (p *KafkaPushProducer) PublishPushIntent(ctx context.Context, n *models.Notification) error {
	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(n.UserID.String()),
		Value: value,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish push intent: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPushProducer) Close() error {
	return p.writer.Close()
}

// NopProducer drops push intents. Used when no brokers are configured,
// for example in local development with embedded Postgres only.
type NopProducer struct{}

func (NopProducer) PublishPushIntent(context.Context, *models.Notification) error { return nil }
func (NopProducer) Close() error                                                  { return nil }
