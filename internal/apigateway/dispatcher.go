package apigateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cheildo/nexus-clash-matchmaking/internal/matchmaking"
)

// Dispatcher hands client commands to the matchmaking core.
type Dispatcher interface {
	Submit(ctx context.Context, cmd matchmaking.Command) error
}

// LocalDispatcher runs commands against a service in the same process. Service errors
// are returned to the caller.
type LocalDispatcher struct {
	svc *matchmaking.Service
}

func NewLocalDispatcher(svc *matchmaking.Service) *LocalDispatcher {
	return &LocalDispatcher{svc: svc}
}

func (d *LocalDispatcher) Submit(_ context.Context, cmd matchmaking.Command) error {
	return d.svc.Execute(cmd)
}

// RedisDispatcher publishes commands on the channel the matchmaking service consumes.
// Submit only reports publish failures; the service reports its own errors to the
// connection through the delivery relay.
type RedisDispatcher struct {
	pub     Publisher
	channel string
	timeout time.Duration
}

func NewRedisDispatcher(pub Publisher, channel string) *RedisDispatcher {
	return &RedisDispatcher{pub: pub, channel: channel, timeout: 2 * time.Second}
}

func (d *RedisDispatcher) Submit(ctx context.Context, cmd matchmaking.Command) error {
	msg, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode %s command: %w", cmd.Type, err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.pub.Publish(ctx, d.channel, msg).Err(); err != nil {
		return fmt.Errorf("publish %s command: %w", cmd.Type, err)
	}
	return nil
}
