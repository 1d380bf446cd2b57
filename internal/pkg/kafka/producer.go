package kafka

import (
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// ProducerConfig holds what is needed to publish to a single topic.
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// NewProducer initializes an asynchronous Kafka writer. Writes return immediately and
// failures are reported through the completion callback.
func NewProducer(cfg ProducerConfig) *kafka.Writer {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 50 * time.Millisecond
	}

	return &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafka.Hash{}, // same match id, same partition
		// Acknowledge after the leader has written.
		RequiredAcks:           kafka.RequireOne,
		Async:                  true,
		BatchTimeout:           batchTimeout,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				slog.Error("Kafka async write failed", "topic", cfg.Topic, "messages", len(messages), "error", err)
			}
		},
	}
}
