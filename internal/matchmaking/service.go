package matchmaking

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// PairStatus is the outcome of a pairing request.
type PairStatus string

const (
	PairWaiting        PairStatus = "waiting"
	PairMatched        PairStatus = "matched"
	PairAlreadyInMatch PairStatus = "already_in_match"
)

// PairResult describes what a pairing request did. MatchID, Role and Opponent are set
// when the player is in a match.
type PairResult struct {
	Status   PairStatus
	MatchID  string
	Role     Role
	Opponent Player
}

// Reasons accepted by CheckMatch.
const (
	CheckReasonHeartbeat = "heartbeat"
	CheckReasonStatus    = "status"
)

// Match status values reported to polling clients.
const (
	StatusActive  = "active"
	StatusLoading = "loading"
	StatusEnded   = "ended"
)

// MatchStatus is the answer to a liveness or presence check. BothPlayersLeft is the
// legacy name for "the match is no longer viable" and is always !Active.
type MatchStatus struct {
	MatchID         string
	Active          bool
	BothPlayersLeft bool
	Status          string
	Reason          string
}

// QueueStatus is the answer to CheckQueueStatus. MatchID is set once the player has
// been paired.
type QueueStatus struct {
	InQueue  bool
	Position int
	MatchID  string
}

// Stats is a point-in-time count of the core's collections.
type Stats struct {
	Queued        int
	ActiveMatches int
	Connections   int
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now as the Service's time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLifecycleHook registers a hook for match creation and termination.
func WithLifecycleHook(h LifecycleHook) Option {
	return func(s *Service) { s.hook = h }
}

// WithMatchIDs replaces the match id generator.
func WithMatchIDs(gen func() string) Option {
	return func(s *Service) { s.matches.newID = gen }
}

// Service pairs waiting players into matches and tears matches down. It owns the
// connection registry, the wait queue and the match table; a single mutex serializes
// every operation over them. Notifications and lifecycle hooks run after the mutex is
// released, in the order the operations committed.
type Service struct {
	mu       sync.Mutex
	flushMu  sync.Mutex
	cfg      Config
	registry *Registry
	queue    *Queue
	matches  *MatchTable
	notifier *Notifier
	hook     LifecycleHook
	now      func() time.Time
}

// NewService creates a new matchmaking service delivering notifications via transport.
func NewService(cfg Config, transport Transport, opts ...Option) *Service {
	matches := NewMatchTable()
	registry := NewRegistry()
	s := &Service{
		cfg:      cfg.WithDefaults(),
		registry: registry,
		queue:    NewQueue(matches.HasPlayer),
		matches:  matches,
		notifier: NewNotifier(registry, transport),
		hook:     noopHook{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// Now returns the current time on the Service's clock.
func (s *Service) Now() time.Time {
	return s.now()
}

type endedMatch struct {
	match  Match
	reason string
}

// outbox collects side effects of one operation so they can run after unlock.
type outbox struct {
	deliveries []Delivery
	created    []Match
	ended      []endedMatch
}

func (s *Service) notify(ob *outbox, userID string, ev Event) {
	if d, ok := s.notifier.address(userID, ev); ok {
		ob.deliveries = append(ob.deliveries, d)
	}
}

// unlockAndFlush releases mu and dispatches ob. flushMu is taken before mu is released,
// so outboxes are flushed in commit order and a match_ended hook never overtakes the
// match_created hook of the same match.
func (s *Service) unlockAndFlush(ob *outbox) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	s.mu.Unlock()
	s.flush(ob)
}

func (s *Service) flush(ob *outbox) {
	s.notifier.Dispatch(ob.deliveries)
	for _, m := range ob.created {
		s.hook.MatchCreated(m)
	}
	for _, e := range ob.ended {
		s.hook.MatchEnded(e.match, e.reason)
	}
}

// Pair asks for an opponent on behalf of userID. connID binds the caller's connection
// for push notifications; polling callers pass an empty connID and learn the outcome
// from the result and from status queries.
//
// A player already in a match gets ErrAlreadyInMatch along with the match details so
// the client can resynchronize. A player already waiting is refreshed in place.
func (s *Service) Pair(userID, displayName, connID string) (PairResult, error) {
	if userID == "" {
		return PairResult{}, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}

	var ob outbox
	s.mu.Lock()
	res, err := s.pairLocked(&ob, userID, displayName, connID)
	s.unlockAndFlush(&ob)
	return res, err
}

func (s *Service) pairLocked(ob *outbox, userID, displayName, connID string) (PairResult, error) {
	now := s.now()

	if connID != "" {
		if owner, ok := s.registry.UserFor(connID); ok && owner != userID {
			return PairResult{}, fmt.Errorf("%w: connection %s is bound to another player", ErrInvalidRequest, connID)
		}
		if prev := s.registry.Bind(connID, userID); prev != "" {
			slog.Info("Connection superseded by newer connection", "userID", userID, "oldConnID", prev, "connID", connID)
		}
	}

	if m, err := s.matches.MatchFor(userID); err == nil {
		s.notify(ob, userID, ErrorEvent("already in a match"))
		opponent, _ := m.Opponent(userID)
		role := RoleClient
		if m.PlayerA.UserID == userID {
			role = RoleHost
		}
		return PairResult{Status: PairAlreadyInMatch, MatchID: m.ID, Role: role, Opponent: opponent}, ErrAlreadyInMatch
	}

	if s.queue.Contains(userID) {
		if connID != "" {
			s.queue.UpdateConn(userID, connID)
		}
		return PairResult{Status: PairWaiting}, nil
	}

	entry := QueueEntry{UserID: userID, DisplayName: displayName, ConnID: connID, EnqueuedAt: now}

	opponent, err := s.queue.DequeueFront()
	if errors.Is(err, ErrQueueEmpty) {
		if err := s.queue.Enqueue(entry); err != nil {
			return PairResult{}, err
		}
		s.notify(ob, userID, WaitingForMatch())
		slog.Info("Player added to queue", "userID", userID, "queued", s.queue.Len())
		return PairResult{Status: PairWaiting}, nil
	}
	return s.pairWithLocked(ob, entry, opponent, now)
}

// pairWithLocked matches entry against the dequeued opponent. An opponent with the
// caller's own user id goes back to the queue tail, carrying the caller's connection,
// and nobody is matched.
func (s *Service) pairWithLocked(ob *outbox, entry, opponent QueueEntry, now time.Time) (PairResult, error) {
	if opponent.UserID == entry.UserID {
		slog.Warn("Dequeued player matched against itself, requeueing", "userID", entry.UserID)
		if entry.ConnID != "" {
			opponent.ConnID = entry.ConnID
		}
		if err := s.queue.Enqueue(opponent); err != nil {
			return PairResult{}, err
		}
		s.notify(ob, entry.UserID, WaitingForMatch())
		return PairResult{Status: PairWaiting}, nil
	}

	m, err := s.matches.Create(opponent.player(), entry.player(), now)
	if err != nil {
		slog.Error("Failed to create match", "host", opponent.UserID, "client", entry.UserID, "error", err)
		_ = s.queue.Enqueue(opponent)
		return PairResult{}, err
	}

	s.notify(ob, m.PlayerA.UserID, MatchFound(m.ID, m.PlayerB, RoleHost))
	s.notify(ob, m.PlayerB.UserID, MatchFound(m.ID, m.PlayerA, RoleClient))
	ob.created = append(ob.created, m.clone())

	slog.Info("Match created", "matchID", m.ID, "host", m.PlayerA.UserID, "client", m.PlayerB.UserID)
	return PairResult{Status: PairMatched, MatchID: m.ID, Role: RoleClient, Opponent: m.PlayerA}, nil
}

// CancelWait removes userID from the wait queue. It is a no-op if the player is not
// waiting.
func (s *Service) CancelWait(userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue.Remove(userID) {
		slog.Info("Player left the queue", "userID", userID)
	}
	return nil
}

// CancelWaitConn removes whoever waits on connID from the wait queue.
func (s *Service) CancelWaitConn(connID string) error {
	if connID == "" {
		return fmt.Errorf("%w: connection id is required", ErrInvalidRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if userID, ok := s.registry.UserFor(connID); ok {
		if s.queue.Remove(userID) {
			slog.Info("Player left the queue", "userID", userID, "connID", connID)
		}
		return nil
	}
	if userID, ok := s.queue.RemoveByConn(connID); ok {
		slog.Info("Player left the queue", "userID", userID, "connID", connID)
	}
	return nil
}

// LeaveMatch ends userID's match at the player's request, without grace. An empty
// matchID means "whatever match userID is in". The player is also taken out of the
// wait queue. Leaving a match that no longer exists is a no-op; naming a match the
// player is not part of returns ErrNotFound.
func (s *Service) LeaveMatch(matchID, userID, reason string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	if reason == "" {
		reason = ReasonPlayerQuit
	}

	var ob outbox
	s.mu.Lock()
	err := s.leaveLocked(&ob, matchID, userID, reason)
	s.unlockAndFlush(&ob)
	return err
}

func (s *Service) leaveLocked(ob *outbox, matchID, userID, reason string) error {
	if s.queue.Remove(userID) {
		slog.Info("Player left the queue", "userID", userID)
	}

	var (
		m   *Match
		err error
	)
	if matchID == "" {
		m, err = s.matches.MatchFor(userID)
	} else {
		m, err = s.matches.Get(matchID)
	}
	if err != nil {
		return nil
	}
	if !m.Has(userID) {
		return fmt.Errorf("%w: %s is not a player in %s", ErrNotFound, userID, m.ID)
	}

	s.matches.Destroy(m.ID)
	if opponent, ok := m.Opponent(userID); ok {
		s.notify(ob, opponent.UserID, OpponentLeft(m.ID, reason))
	}
	s.notify(ob, userID, MatchEnded(m.ID, ReasonQuit))
	ob.ended = append(ob.ended, endedMatch{match: m.clone(), reason: reason})

	slog.Info("Player left match", "matchID", m.ID, "userID", userID, "reason", reason)
	return nil
}

// ConnectionClosed handles a dropped connection. The player leaves the wait queue. A
// player in a match younger than the grace window keeps the match, since an early drop
// is usually a client scene change; past the window the match ends and the opponent is
// told.
func (s *Service) ConnectionClosed(connID string) {
	var ob outbox
	s.mu.Lock()
	s.connectionClosedLocked(&ob, connID)
	s.unlockAndFlush(&ob)
}

func (s *Service) connectionClosedLocked(ob *outbox, connID string) {
	userID, ok := s.registry.UnbindConn(connID)
	if !ok {
		if userID, ok := s.queue.RemoveByConn(connID); ok {
			slog.Info("Unbound connection closed, removed queue entry", "userID", userID, "connID", connID)
		}
		return
	}

	if s.queue.Remove(userID) {
		slog.Info("Connection closed, player removed from queue", "userID", userID, "connID", connID)
	}

	m, err := s.matches.MatchFor(userID)
	if err != nil {
		return
	}

	now := s.now()
	if now.Sub(m.CreatedAt) < s.cfg.DisconnectGraceWindow {
		slog.Info("Disconnect inside grace window, keeping match", "matchID", m.ID, "userID", userID)
		return
	}

	s.matches.Destroy(m.ID)
	if opponent, ok := m.Opponent(userID); ok {
		s.notify(ob, opponent.UserID, OpponentLeft(m.ID, ReasonDisconnect))
	}
	ob.ended = append(ob.ended, endedMatch{match: m.clone(), reason: ReasonDisconnect})
	slog.Info("Match ended by disconnect", "matchID", m.ID, "userID", userID)
}

// Heartbeat records a liveness signal from userID and evaluates the match.
func (s *Service) Heartbeat(matchID, userID string) (MatchStatus, error) {
	return s.CheckMatch(matchID, userID, CheckReasonHeartbeat)
}

// CheckMatchStatus evaluates the match without recording a heartbeat.
func (s *Service) CheckMatchStatus(matchID, userID string) (MatchStatus, error) {
	return s.CheckMatch(matchID, userID, CheckReasonStatus)
}

// CheckMatch evaluates heartbeat liveness of both players. With reason
// CheckReasonHeartbeat the caller's heartbeat is refreshed first. A player is live while
// less than the heartbeat timeout has passed since its last heartbeat; if either player
// is not live the match ends.
func (s *Service) CheckMatch(matchID, userID, reason string) (MatchStatus, error) {
	if matchID == "" || userID == "" {
		return MatchStatus{}, fmt.Errorf("%w: match id and user id are required", ErrInvalidRequest)
	}

	var ob outbox
	s.mu.Lock()
	st, err := s.checkLocked(&ob, matchID, userID, reason)
	s.unlockAndFlush(&ob)
	return st, err
}

func (s *Service) checkLocked(ob *outbox, matchID, userID, reason string) (MatchStatus, error) {
	m, err := s.matches.Get(matchID)
	if err != nil {
		return endedStatus(matchID, ReasonMatchNotFound), nil
	}
	if !m.Has(userID) {
		return MatchStatus{}, fmt.Errorf("%w: %s is not a player in %s", ErrNotFound, userID, matchID)
	}

	now := s.now()
	if reason == CheckReasonHeartbeat {
		m.LastHeartbeat[userID] = now
	}

	live := make(map[string]bool, 2)
	allLive := true
	for _, p := range m.Players() {
		live[p.UserID] = now.Sub(m.LastHeartbeat[p.UserID]) < s.cfg.HeartbeatTimeout
		allLive = allLive && live[p.UserID]
	}
	if allLive {
		return MatchStatus{MatchID: matchID, Active: true, Status: StatusActive}, nil
	}

	s.matches.Destroy(m.ID)
	for _, p := range m.Players() {
		if live[p.UserID] {
			s.notify(ob, p.UserID, OpponentLeft(m.ID, ReasonHeartbeatTimeout))
		} else {
			s.notify(ob, p.UserID, MatchEnded(m.ID, ReasonHeartbeatTimeout))
		}
	}
	ob.ended = append(ob.ended, endedMatch{match: m.clone(), reason: ReasonHeartbeatTimeout})
	slog.Info("Match ended by heartbeat timeout", "matchID", m.ID, "checkedBy", userID)
	return endedStatus(matchID, ReasonHeartbeatTimeout), nil
}

// CheckOpponentPresence reports whether userID's opponent still has a registered
// connection. A missing opponent inside the grace window is reported as loading; past
// the window the match ends.
func (s *Service) CheckOpponentPresence(matchID, userID string) (MatchStatus, error) {
	if matchID == "" || userID == "" {
		return MatchStatus{}, fmt.Errorf("%w: match id and user id are required", ErrInvalidRequest)
	}

	var ob outbox
	s.mu.Lock()
	st, err := s.presenceLocked(&ob, matchID, userID)
	s.unlockAndFlush(&ob)
	return st, err
}

func (s *Service) presenceLocked(ob *outbox, matchID, userID string) (MatchStatus, error) {
	m, err := s.matches.Get(matchID)
	if err != nil {
		return endedStatus(matchID, ReasonMatchNotFound), nil
	}
	opponent, ok := m.Opponent(userID)
	if !ok {
		return MatchStatus{}, fmt.Errorf("%w: %s is not a player in %s", ErrNotFound, userID, matchID)
	}

	if s.registry.Reachable(opponent.UserID) {
		return MatchStatus{MatchID: matchID, Active: true, Status: StatusActive}, nil
	}
	if s.now().Sub(m.CreatedAt) < s.cfg.DisconnectGraceWindow {
		return MatchStatus{MatchID: matchID, Active: true, Status: StatusLoading}, nil
	}

	s.matches.Destroy(m.ID)
	s.notify(ob, userID, OpponentLeft(m.ID, ReasonOpponentDisconnect))
	ob.ended = append(ob.ended, endedMatch{match: m.clone(), reason: ReasonOpponentDisconnect})
	slog.Info("Match ended, opponent not connected", "matchID", m.ID, "opponent", opponent.UserID)
	return endedStatus(matchID, ReasonOpponentDisconnect), nil
}

func endedStatus(matchID, reason string) MatchStatus {
	return MatchStatus{MatchID: matchID, BothPlayersLeft: true, Status: StatusEnded, Reason: reason}
}

// CheckQueueStatus reports whether userID is waiting, and where.
func (s *Service) CheckQueueStatus(userID string) (QueueStatus, error) {
	if userID == "" {
		return QueueStatus{}, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if pos, ok := s.queue.Position(userID); ok {
		return QueueStatus{InQueue: true, Position: pos}, nil
	}
	if m, err := s.matches.MatchFor(userID); err == nil {
		return QueueStatus{MatchID: m.ID}, nil
	}
	return QueueStatus{}, nil
}

// EvictStaleQueue drops queue entries older than the queue stale timeout.
func (s *Service) EvictStaleQueue() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.queue.EvictStale(s.cfg.QueueStaleTimeout, s.now())
	if n > 0 {
		slog.Info("Evicted stale queue entries", "count", n, "queued", s.queue.Len())
	}
	return n
}

// EvictStaleMatches ends matches older than the match stale timeout and tells both
// players.
func (s *Service) EvictStaleMatches() int {
	var ob outbox
	s.mu.Lock()
	evicted := s.matches.EvictStale(s.cfg.MatchStaleTimeout, s.now())
	for _, m := range evicted {
		for _, p := range m.Players() {
			s.notify(&ob, p.UserID, MatchEnded(m.ID, ReasonMatchTimeout))
		}
		ob.ended = append(ob.ended, endedMatch{match: m.clone(), reason: ReasonMatchTimeout})
	}
	s.unlockAndFlush(&ob)

	if len(evicted) > 0 {
		slog.Info("Evicted stale matches", "count", len(evicted))
	}
	return len(evicted)
}

// Stats counts queued players, active matches and bound connections.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Queued:        s.queue.Len(),
		ActiveMatches: s.matches.Len(),
		Connections:   s.registry.Len(),
	}
}
