package apigateway

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cheildo/nexus-clash-matchmaking/internal/matchmaking"
)

type fakePublisher struct {
	mu  sync.Mutex
	got chan []byte
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got <- message.([]byte)
	return redis.NewIntResult(1, nil)
}

func TestRedisRelay_PublishesEnvelope(t *testing.T) {
	pub := &fakePublisher{got: make(chan []byte, 1)}
	relay := NewRedisRelay(pub, "deliveries", 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go relay.Run(ctx)

	require.NoError(t, relay.Deliver(matchmaking.Delivery{
		ConnID: "conn-1",
		UserID: "u1",
		Event:  matchmaking.OpponentLeft("match_1", matchmaking.ReasonDisconnect),
	}))

	var msg []byte
	select {
	case msg = <-pub.got:
	case <-time.After(time.Second):
		t.Fatal("relay did not publish")
	}

	var env relayEnvelope
	require.NoError(t, json.Unmarshal(msg, &env))
	assert.Equal(t, "conn-1", env.ConnID)
	assert.Equal(t, "u1", env.UserID)
	assert.JSONEq(t, `{"type":"opponentLeft","payload":{"matchId":"match_1","reason":"disconnect"}}`, string(env.Event))
}

func TestRedisRelay_FullQueue(t *testing.T) {
	relay := NewRedisRelay(&fakePublisher{}, "deliveries", 1)
	d := matchmaking.Delivery{ConnID: "conn-1", Event: matchmaking.WaitingForMatch()}

	require.NoError(t, relay.Deliver(d))
	assert.ErrorIs(t, relay.Deliver(d), matchmaking.ErrDeliveryFailed)
}

func TestRelaySubscriber_Handle(t *testing.T) {
	cm := NewConnectionManager()
	local := newClient("conn-local", nil, 1)
	cm.Add(local)
	sub := NewRelaySubscriber(nil, "deliveries", cm)

	sub.handle([]byte(`{"connId":"conn-local","userId":"u1","event":{"type":"waitingForMatch","payload":{}}}`))
	sub.handle([]byte(`{"connId":"conn-elsewhere","userId":"u2","event":{"type":"waitingForMatch","payload":{}}}`))
	sub.handle([]byte(`not json`))

	require.Len(t, local.send, 1)
	assert.JSONEq(t, `{"type":"waitingForMatch","payload":{}}`, string(<-local.send))
}
