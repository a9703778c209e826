// README: Kafka-backed notifier; delivery is best effort.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"spoke/internal/types"
)

const writeTimeout = 2 * time.Second

type Kafka struct {
	writer *kafka.Writer
	log    *slog.Logger
}

func NewKafka(brokers []string, topic string, log *slog.Logger) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
		},
		log: log,
	}
}

type envelope struct {
	Recipient string         `json:"recipient"`
	Event     string         `json:"event"`
	Payload   map[string]any `json:"payload,omitempty"`
	SentAt    time.Time      `json:"sent_at"`
}

// Notify publishes the event keyed by recipient. Failures are logged and
// never surfaced, so a broker outage cannot fail an order transition.
func (k *Kafka) Notify(ctx context.Context, recipient types.ID, event string, payload map[string]any) {
	body, err := json.Marshal(envelope{
		Recipient: string(recipient),
		Event:     event,
		Payload:   payload,
		SentAt:    time.Now().UTC(),
	})
	if err != nil {
		k.log.Error("notify marshal failed", "event", event, "error", err)
		return
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := k.writer.WriteMessages(wctx, kafka.Message{
		Key:   []byte(recipient),
		Value: body,
	}); err != nil {
		k.log.Warn("notify dropped", "event", event, "recipient", string(recipient), "error", err)
	}
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
