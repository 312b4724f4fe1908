package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type notification struct {
	SessionID string    `json:"session_id"`
	Message   string    `json:"message"`
	SentAt    time.Time `json:"sent_at"`
}

// MessageWriter is the subset of *kafka.Writer the notifier uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaNotifier publishes each message as a JSON event keyed by session id,
// so the storefront can push toasts to the right browser.
type KafkaNotifier struct {
	writer    MessageWriter
	sessionID string
	log       *zap.Logger
}

// NewKafkaWriter returns an async writer: WriteMessages enqueues and returns
// immediately, matching the fire-and-forget contract.
func NewKafkaWriter(topic string, log *zap.Logger, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error("failed to publish notifications", zap.Int("count", len(messages)), zap.Error(err))
			}
		},
	}
}

func NewKafkaNotifier(writer MessageWriter, sessionID string, log *zap.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		writer:    writer,
		sessionID: sessionID,
		log:       log,
	}
}

func (k *KafkaNotifier) Notify(message string) {
	value, err := json.Marshal(notification{
		SessionID: k.sessionID,
		Message:   message,
		SentAt:    time.Now().UTC(),
	})
	if err != nil {
		k.log.Error("marshal notification failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(k.sessionID),
		Value: value,
	})
	if err != nil {
		k.log.Error("write notification failed", zap.String("session_id", k.sessionID), zap.Error(err))
	}
}
