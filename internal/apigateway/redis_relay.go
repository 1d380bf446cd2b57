package apigateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cheildo/nexus-clash-matchmaking/internal/matchmaking"
)

// Publisher is the subset of *redis.Client the relay publishes through.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type relayEnvelope struct {
	ConnID string          `json:"connId"`
	UserID string          `json:"userId"`
	Event  json.RawMessage `json:"event"`
}

// RedisRelay is a matchmaking.Transport that publishes deliveries to a Redis channel.
// Every gateway subscribes and writes the deliveries addressed to connections it holds.
// Deliver only queues; Run does the publishing.
type RedisRelay struct {
	pub     Publisher
	channel string
	queue   chan []byte
}

func NewRedisRelay(pub Publisher, channel string, buffer int) *RedisRelay {
	if buffer <= 0 {
		buffer = 1024
	}
	return &RedisRelay{
		pub:     pub,
		channel: channel,
		queue:   make(chan []byte, buffer),
	}
}

func (r *RedisRelay) Deliver(d matchmaking.Delivery) error {
	event, err := json.Marshal(d.Event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", d.Event.Type, err)
	}
	msg, err := json.Marshal(relayEnvelope{ConnID: d.ConnID, UserID: d.UserID, Event: event})
	if err != nil {
		return fmt.Errorf("encode relay envelope: %w", err)
	}

	select {
	case r.queue <- msg:
		return nil
	default:
		return fmt.Errorf("%w: relay queue full", matchmaking.ErrDeliveryFailed)
	}
}

// Run publishes queued deliveries until ctx is cancelled. It should be run in a
// goroutine.
func (r *RedisRelay) Run(ctx context.Context) {
	slog.Info("Redis relay publisher started", "channel", r.channel)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Redis relay publisher stopped.")
			return
		case msg := <-r.queue:
			pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := r.pub.Publish(pubCtx, r.channel, msg).Err()
			cancel()
			if err != nil {
				slog.Error("Failed to publish relay message", "channel", r.channel, "error", err)
			}
		}
	}
}

// RelaySubscriber receives relayed deliveries and writes those addressed to local
// connections.
type RelaySubscriber struct {
	rdb     *redis.Client
	channel string
	cm      *ConnectionManager
}

func NewRelaySubscriber(rdb *redis.Client, channel string, cm *ConnectionManager) *RelaySubscriber {
	return &RelaySubscriber{rdb: rdb, channel: channel, cm: cm}
}

// Run starts the subscriber loop. It should be run in a goroutine.
func (s *RelaySubscriber) Run(ctx context.Context) {
	runSubscription(ctx, s.rdb, s.channel, "relay", s.handle)
}

func (s *RelaySubscriber) handle(payload []byte) {
	var env relayEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		slog.Error("Failed to unmarshal relay message", "error", err)
		return
	}

	err := s.cm.DeliverRaw(env.ConnID, env.Event)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotConnected):
		// Another gateway holds this connection.
	default:
		slog.Warn("Failed to deliver relayed notification", "userID", env.UserID, "connID", env.ConnID, "error", err)
	}
}

// CommandSubscriber executes the commands gateways publish. A command the service
// rejects is answered with an error event on the originating connection.
type CommandSubscriber struct {
	rdb       *redis.Client
	channel   string
	svc       *matchmaking.Service
	transport matchmaking.Transport
}

func NewCommandSubscriber(rdb *redis.Client, channel string, svc *matchmaking.Service, transport matchmaking.Transport) *CommandSubscriber {
	return &CommandSubscriber{rdb: rdb, channel: channel, svc: svc, transport: transport}
}

// Run starts the subscriber loop. It should be run in a goroutine.
func (s *CommandSubscriber) Run(ctx context.Context) {
	runSubscription(ctx, s.rdb, s.channel, "command", s.handle)
}

func (s *CommandSubscriber) handle(payload []byte) {
	var cmd matchmaking.Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		slog.Error("Failed to unmarshal command", "error", err)
		return
	}

	err := s.svc.Execute(cmd)
	if err == nil {
		return
	}
	slog.Debug("Command rejected", "type", cmd.Type, "connID", cmd.ConnID, "userID", cmd.UserID, "error", err)
	if cmd.ConnID == "" || cmd.Type == matchmaking.CommandConnectionClosed {
		return
	}
	reply := matchmaking.Delivery{ConnID: cmd.ConnID, UserID: cmd.UserID, Event: matchmaking.ErrorEvent(err.Error())}
	if err := s.transport.Deliver(reply); err != nil {
		slog.Debug("Failed to report command error", "connID", cmd.ConnID, "error", err)
	}
}

// runSubscription hands every message on channel to handle until ctx is cancelled or
// the subscription closes.
func runSubscription(ctx context.Context, rdb *redis.Client, channel, name string, handle func([]byte)) {
	pubsub := rdb.Subscribe(ctx, channel)
	defer pubsub.Close()

	slog.Info("Redis subscriber started", "subscriber", name, "channel", channel)
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			slog.Info("Redis subscriber stopped.", "subscriber", name)
			return
		case msg, ok := <-ch:
			if !ok {
				slog.Warn("Redis subscription closed", "subscriber", name, "channel", channel)
				return
			}
			handle([]byte(msg.Payload))
		}
	}
}
