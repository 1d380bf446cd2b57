package matchmaking

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// recordingTransport records every delivery. With fail set it records and then fails.
type recordingTransport struct {
	mu         sync.Mutex
	deliveries []Delivery
	fail       bool
}

func (r *recordingTransport) Deliver(d Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, d)
	if r.fail {
		return errors.Join(ErrDeliveryFailed, errors.New("connection not open"))
	}
	return nil
}

func (r *recordingTransport) all() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

func (r *recordingTransport) eventsFor(userID string) []Event {
	var events []Event
	for _, d := range r.all() {
		if d.UserID == userID {
			events = append(events, d.Event)
		}
	}
	return events
}

func (r *recordingTransport) reset() {
	r.mu.Lock()
	r.deliveries = nil
	r.mu.Unlock()
}

type endedRecord struct {
	match  Match
	reason string
}

type recordingHook struct {
	mu      sync.Mutex
	created []Match
	ended   []endedRecord
}

func (h *recordingHook) MatchCreated(m Match) {
	h.mu.Lock()
	h.created = append(h.created, m)
	h.mu.Unlock()
}

func (h *recordingHook) MatchEnded(m Match, reason string) {
	h.mu.Lock()
	h.ended = append(h.ended, endedRecord{match: m, reason: reason})
	h.mu.Unlock()
}

type testEnv struct {
	svc       *Service
	clock     *fakeClock
	transport *recordingTransport
	hook      *recordingHook
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		clock:     newFakeClock(),
		transport: &recordingTransport{},
		hook:      &recordingHook{},
	}
	env.svc = NewService(DefaultConfig(), env.transport,
		WithClock(env.clock.Now),
		WithLifecycleHook(env.hook),
	)
	return env
}

// pairUp queues a then b and returns the match id.
func (e *testEnv) pairUp(t *testing.T, a, b string) string {
	t.Helper()
	if _, err := e.svc.Pair(a, "name-"+a, "conn-"+a); err != nil {
		t.Fatalf("pair %s: %v", a, err)
	}
	res, err := e.svc.Pair(b, "name-"+b, "conn-"+b)
	if err != nil {
		t.Fatalf("pair %s: %v", b, err)
	}
	if res.Status != PairMatched {
		t.Fatalf("pair %s: status %s, want matched", b, res.Status)
	}
	return res.MatchID
}
