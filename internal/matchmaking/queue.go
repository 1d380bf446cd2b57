package matchmaking

import "time"

// QueueEntry is a player waiting for an opponent.
type QueueEntry struct {
	UserID      string
	DisplayName string
	ConnID      string
	EnqueuedAt  time.Time
}

func (e QueueEntry) player() Player {
	return Player{UserID: e.UserID, DisplayName: e.DisplayName}
}

// Queue holds waiting players in arrival order.
//
// Queue is not safe for concurrent use. Service serializes access to it.
type Queue struct {
	entries []QueueEntry
	matched func(userID string) bool
}

// NewQueue creates an empty queue. matched reports whether a user already has an active
// match; such users are refused by Enqueue. A nil matched accepts everyone.
func NewQueue(matched func(userID string) bool) *Queue {
	if matched == nil {
		matched = func(string) bool { return false }
	}
	return &Queue{matched: matched}
}

// Enqueue appends e to the tail.
func (q *Queue) Enqueue(e QueueEntry) error {
	if e.UserID == "" {
		return ErrInvalidRequest
	}
	if q.indexOf(e.UserID) >= 0 {
		return ErrAlreadyQueued
	}
	if q.matched(e.UserID) {
		return ErrAlreadyInMatch
	}
	q.entries = append(q.entries, e)
	return nil
}

// DequeueFront removes and returns the longest-waiting entry.
func (q *Queue) DequeueFront() (QueueEntry, error) {
	if len(q.entries) == 0 {
		return QueueEntry{}, ErrQueueEmpty
	}
	e := q.entries[0]
	q.entries[0] = QueueEntry{}
	q.entries = q.entries[1:]
	return e, nil
}

// Remove drops the entry for userID. It reports whether an entry was present.
func (q *Queue) Remove(userID string) bool {
	i := q.indexOf(userID)
	if i < 0 {
		return false
	}
	q.entries = append(q.entries[:i], q.entries[i+1:]...)
	return true
}

// RemoveByConn drops the entry registered with connID and returns its user id.
func (q *Queue) RemoveByConn(connID string) (string, bool) {
	for i, e := range q.entries {
		if e.ConnID == connID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return e.UserID, true
		}
	}
	return "", false
}

// UpdateConn replaces the connection id stored for a queued user.
func (q *Queue) UpdateConn(userID, connID string) bool {
	i := q.indexOf(userID)
	if i < 0 {
		return false
	}
	q.entries[i].ConnID = connID
	return true
}

// Contains reports whether userID is waiting.
func (q *Queue) Contains(userID string) bool {
	return q.indexOf(userID) >= 0
}

// Position returns the 1-based place of userID in the queue.
func (q *Queue) Position(userID string) (int, bool) {
	i := q.indexOf(userID)
	if i < 0 {
		return 0, false
	}
	return i + 1, true
}

// EvictStale removes every entry that has waited at least maxAge and returns how many
// were removed.
func (q *Queue) EvictStale(maxAge time.Duration, now time.Time) int {
	kept := q.entries[:0]
	removed := 0
	for _, e := range q.entries {
		if now.Sub(e.EnqueuedAt) >= maxAge {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(q.entries); i++ {
		q.entries[i] = QueueEntry{}
	}
	q.entries = kept
	return removed
}

func (q *Queue) Len() int {
	return len(q.entries)
}

func (q *Queue) indexOf(userID string) int {
	for i, e := range q.entries {
		if e.UserID == userID {
			return i
		}
	}
	return -1
}
