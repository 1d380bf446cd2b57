package matchmaking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_EnqueueDequeueOrder(t *testing.T) {
	q := NewQueue(nil)
	now := time.Now()

	for _, id := range []string{"u1", "u2", "u3"} {
		require.NoError(t, q.Enqueue(QueueEntry{UserID: id, EnqueuedAt: now}))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"u1", "u2", "u3"} {
		e, err := q.DequeueFront()
		require.NoError(t, err)
		assert.Equal(t, want, e.UserID)
	}

	_, err := q.DequeueFront()
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestQueue_EnqueueRejects(t *testing.T) {
	matched := map[string]bool{"busy": true}
	q := NewQueue(func(id string) bool { return matched[id] })

	require.NoError(t, q.Enqueue(QueueEntry{UserID: "u1"}))

	tests := []struct {
		name    string
		entry   QueueEntry
		wantErr error
	}{
		{name: "already queued", entry: QueueEntry{UserID: "u1"}, wantErr: ErrAlreadyQueued},
		{name: "already matched", entry: QueueEntry{UserID: "busy"}, wantErr: ErrAlreadyInMatch},
		{name: "missing user id", entry: QueueEntry{}, wantErr: ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, q.Enqueue(tt.entry), tt.wantErr)
			assert.Equal(t, 1, q.Len())
		})
	}
}

func TestQueue_RemoveIsIdempotent(t *testing.T) {
	q := NewQueue(nil)
	require.NoError(t, q.Enqueue(QueueEntry{UserID: "u1", ConnID: "c1"}))
	require.NoError(t, q.Enqueue(QueueEntry{UserID: "u2", ConnID: "c2"}))

	assert.True(t, q.Remove("u1"))
	assert.False(t, q.Remove("u1"))
	assert.False(t, q.Contains("u1"))

	pos, ok := q.Position("u2")
	require.True(t, ok)
	assert.Equal(t, 1, pos)

	userID, ok := q.RemoveByConn("c2")
	require.True(t, ok)
	assert.Equal(t, "u2", userID)
	_, ok = q.RemoveByConn("c2")
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_UpdateConn(t *testing.T) {
	q := NewQueue(nil)
	require.NoError(t, q.Enqueue(QueueEntry{UserID: "u1", ConnID: "old"}))

	assert.True(t, q.UpdateConn("u1", "new"))
	assert.False(t, q.UpdateConn("ghost", "new"))

	e, err := q.DequeueFront()
	require.NoError(t, err)
	assert.Equal(t, "new", e.ConnID)
}

func TestQueue_EvictStale(t *testing.T) {
	q := NewQueue(nil)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, q.Enqueue(QueueEntry{UserID: "old", EnqueuedAt: base}))
	require.NoError(t, q.Enqueue(QueueEntry{UserID: "edge", EnqueuedAt: base.Add(10 * time.Second)}))
	require.NoError(t, q.Enqueue(QueueEntry{UserID: "fresh", EnqueuedAt: base.Add(11 * time.Second)}))

	removed := q.EvictStale(300*time.Second, base.Add(310*time.Second))

	assert.Equal(t, 2, removed, "entries exactly maxAge old are evicted")
	assert.False(t, q.Contains("old"))
	assert.False(t, q.Contains("edge"))
	pos, ok := q.Position("fresh")
	require.True(t, ok)
	assert.Equal(t, 1, pos)
}
