package matchmaking

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("publish without deadline")
	}
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestKafkaPublisher_PublishesLifecycle(t *testing.T) {
	w := &fakeWriter{}
	clock := newFakeClock()
	svc := NewService(DefaultConfig(), nil,
		WithClock(clock.Now),
		WithLifecycleHook(NewKafkaPublisher(w)),
		WithMatchIDs(func() string { return "match_fixed" }),
	)

	_, err := svc.Pair("alice", "Alice", "")
	require.NoError(t, err)
	_, err = svc.Pair("bob", "Bob", "")
	require.NoError(t, err)
	require.NoError(t, svc.LeaveMatch("match_fixed", "bob", ""))

	require.Len(t, w.msgs, 2)

	found := w.msgs[0]
	assert.Equal(t, "match_fixed", string(found.Key))
	assert.Equal(t, KafkaEventMatchFound, header(found, "event_type"))
	var fe MatchFoundEvent
	require.NoError(t, json.Unmarshal(found.Value, &fe))
	assert.Equal(t, []string{"alice", "bob"}, fe.PlayerIDs)
	assert.Equal(t, "alice", fe.HostID)
	assert.True(t, fe.CreatedAt.Equal(clock.Now()))

	ended := w.msgs[1]
	assert.Equal(t, KafkaEventMatchEnded, header(ended, "event_type"))
	var ee MatchEndedEvent
	require.NoError(t, json.Unmarshal(ended.Value, &ee))
	assert.Equal(t, ReasonPlayerQuit, ee.Reason)
}

func TestKafkaPublisher_WriteErrorDoesNotAffectMatch(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker unavailable")}
	svc := NewService(DefaultConfig(), nil, WithLifecycleHook(NewKafkaPublisher(w)))

	_, err := svc.Pair("alice", "Alice", "")
	require.NoError(t, err)
	res, err := svc.Pair("bob", "Bob", "")
	require.NoError(t, err)

	assert.Equal(t, PairMatched, res.Status)
	assert.Equal(t, 1, svc.Stats().ActiveMatches)
}
