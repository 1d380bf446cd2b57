package matchmaking

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event type header values on the match events topic.
const (
	KafkaEventMatchFound = "match_found"
	KafkaEventMatchEnded = "match_ended"
)

// MatchFoundEvent is published when two players are paired.
type MatchFoundEvent struct {
	MatchID   string    `json:"matchID"`
	PlayerIDs []string  `json:"playerIDs"`
	HostID    string    `json:"hostID"`
	CreatedAt time.Time `json:"createdAt"`
}

// MatchEndedEvent is published when a match is torn down for any reason.
type MatchEndedEvent struct {
	MatchID   string    `json:"matchID"`
	PlayerIDs []string  `json:"playerIDs"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
}

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher is a LifecycleHook that publishes match events keyed by match id.
// The writer should be asynchronous so hooks never block the caller.
type KafkaPublisher struct {
	writer  MessageWriter
	timeout time.Duration
}

func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, timeout: 5 * time.Second}
}

func (p *KafkaPublisher) MatchCreated(m Match) {
	p.publish(KafkaEventMatchFound, m.ID, MatchFoundEvent{
		MatchID:   m.ID,
		PlayerIDs: []string{m.PlayerA.UserID, m.PlayerB.UserID},
		HostID:    m.PlayerA.UserID,
		CreatedAt: m.CreatedAt,
	})
}

func (p *KafkaPublisher) MatchEnded(m Match, reason string) {
	p.publish(KafkaEventMatchEnded, m.ID, MatchEndedEvent{
		MatchID:   m.ID,
		PlayerIDs: []string{m.PlayerA.UserID, m.PlayerB.UserID},
		Reason:    reason,
		CreatedAt: m.CreatedAt,
	})
}

func (p *KafkaPublisher) publish(eventType, matchID string, event any) {
	value, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal match event", "type", eventType, "matchID", matchID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(matchID),
		Value:   value,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(eventType)}},
	})
	if err != nil {
		slog.Error("Failed to publish match event", "type", eventType, "matchID", matchID, "error", err)
		return
	}
	slog.Debug("Published match event", "type", eventType, "matchID", matchID)
}
