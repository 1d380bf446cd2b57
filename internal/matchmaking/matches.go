package matchmaking

import (
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

// Player identifies a user as the auth collaborator supplied it.
type Player struct {
	UserID      string
	DisplayName string
}

// Match is an active two-player session. PlayerA is the host (the player who was
// waiting), PlayerB the client.
type Match struct {
	ID            string
	PlayerA       Player
	PlayerB       Player
	CreatedAt     time.Time
	LastHeartbeat map[string]time.Time
}

// Has reports whether userID plays in m.
func (m *Match) Has(userID string) bool {
	return m.PlayerA.UserID == userID || m.PlayerB.UserID == userID
}

// Opponent returns the other player of m as seen from userID.
func (m *Match) Opponent(userID string) (Player, bool) {
	switch userID {
	case m.PlayerA.UserID:
		return m.PlayerB, true
	case m.PlayerB.UserID:
		return m.PlayerA, true
	}
	return Player{}, false
}

// Players returns both players, host first.
func (m *Match) Players() [2]Player {
	return [2]Player{m.PlayerA, m.PlayerB}
}

func (m *Match) clone() Match {
	c := *m
	c.LastHeartbeat = maps.Clone(m.LastHeartbeat)
	return c
}

// MatchTable stores active matches and indexes them by player.
//
// MatchTable is not safe for concurrent use. Service serializes access to it.
type MatchTable struct {
	matches map[string]*Match
	byUser  map[string]string // userID -> matchID
	newID   func() string
}

func NewMatchTable() *MatchTable {
	return &MatchTable{
		matches: make(map[string]*Match),
		byUser:  make(map[string]string),
		newID:   func() string { return "match_" + uuid.NewString() },
	}
}

// Create stores a new match between a and b with both heartbeats set to now.
func (t *MatchTable) Create(a, b Player, now time.Time) (*Match, error) {
	if a.UserID == "" || b.UserID == "" {
		return nil, ErrInvalidRequest
	}
	if a.UserID == b.UserID {
		return nil, fmt.Errorf("%w: %s cannot play itself", ErrDuplicatePlayer, a.UserID)
	}
	for _, p := range [...]Player{a, b} {
		if id, ok := t.byUser[p.UserID]; ok {
			return nil, fmt.Errorf("%w: %s is in %s", ErrDuplicatePlayer, p.UserID, id)
		}
	}

	id := t.newID()
	for _, exists := t.matches[id]; exists; _, exists = t.matches[id] {
		id = t.newID()
	}

	m := &Match{
		ID:        id,
		PlayerA:   a,
		PlayerB:   b,
		CreatedAt: now,
		LastHeartbeat: map[string]time.Time{
			a.UserID: now,
			b.UserID: now,
		},
	}
	t.matches[id] = m
	t.byUser[a.UserID] = id
	t.byUser[b.UserID] = id
	return m, nil
}

// Get returns the match with matchID, or ErrNotFound.
func (t *MatchTable) Get(matchID string) (*Match, error) {
	m, ok := t.matches[matchID]
	if !ok {
		return nil, ErrNotFound
	}
	return m, nil
}

// MatchFor returns the match userID plays in.
func (t *MatchTable) MatchFor(userID string) (*Match, error) {
	id, ok := t.byUser[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Get(id)
}

// HasPlayer reports whether userID plays in any match.
func (t *MatchTable) HasPlayer(userID string) bool {
	_, ok := t.byUser[userID]
	return ok
}

// Destroy removes a match and both reverse-index entries. Destroying an unknown id
// is a no-op.
func (t *MatchTable) Destroy(matchID string) (*Match, bool) {
	m, ok := t.matches[matchID]
	if !ok {
		return nil, false
	}
	delete(t.matches, matchID)
	for _, p := range m.Players() {
		if t.byUser[p.UserID] == matchID {
			delete(t.byUser, p.UserID)
		}
	}
	return m, true
}

// EvictStale destroys every match created at least maxAge ago and returns them.
func (t *MatchTable) EvictStale(maxAge time.Duration, now time.Time) []*Match {
	var evicted []*Match
	for id, m := range t.matches {
		if now.Sub(m.CreatedAt) >= maxAge {
			t.Destroy(id)
			evicted = append(evicted, m)
		}
	}
	return evicted
}

func (t *MatchTable) Len() int {
	return len(t.matches)
}
