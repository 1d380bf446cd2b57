package matchmaking

import (
	"context"
	"log/slog"
	"time"
)

// SweepReport says what a Tick did.
type SweepReport struct {
	Ran            bool
	QueueEvicted   int
	MatchesEvicted int
}

// Scheduler runs the periodic stale-queue and stale-match sweeps. Tick can be driven by
// any host loop; Start drives it from a ticker.
type Scheduler struct {
	svc      *Service
	interval time.Duration
	next     time.Time
}

// NewScheduler creates a scheduler whose first sweep is due one sweep interval from now
// on the service clock.
func NewScheduler(svc *Service) *Scheduler {
	interval := svc.Config().SweepInterval
	return &Scheduler{
		svc:      svc,
		interval: interval,
		next:     svc.Now().Add(interval),
	}
}

// Tick runs both sweeps if they are due on the service clock.
func (s *Scheduler) Tick() SweepReport {
	now := s.svc.Now()
	if now.Before(s.next) {
		return SweepReport{}
	}
	for !s.next.After(now) {
		s.next = s.next.Add(s.interval)
	}

	return SweepReport{
		Ran:            true,
		QueueEvicted:   s.svc.EvictStaleQueue(),
		MatchesEvicted: s.svc.EvictStaleMatches(),
	}
}

// Start runs the sweep loop in a separate goroutine until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("Matchmaking sweep loop started", "interval", s.interval)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Info("Matchmaking sweep loop stopping.")
				return
			case <-ticker.C:
				s.Tick()
			}
		}
	}()
}
