package service

import (
	"context"
	"time"

	"github.com/keymint/keymint-server/internal/lockout"
	"github.com/keymint/keymint-server/internal/logger"
	"github.com/keymint/keymint-server/internal/model"
)

// Sweeper runs the periodic maintenance pass: expired refresh tokens,
// expired denylist entries and stale lockout records. One ticker drives all
// three; a failed sweep is logged and retried on the next tick, never
// crashing or blocking request paths.
type Sweeper struct {
	refresh  model.RefreshTokenStore
	denylist model.DenylistStore
	tracker  *lockout.Tracker
	logger   *logger.Logger
	interval time.Duration
}

func NewSweeper(
	refresh model.RefreshTokenStore,
	denylist model.DenylistStore,
	tracker *lockout.Tracker,
	logger *logger.Logger,
	interval time.Duration,
) *Sweeper {
	return &Sweeper{
		refresh:  refresh,
		denylist: denylist,
		tracker:  tracker,
		logger:   logger,
		interval: interval,
	}
}

// Run blocks until ctx is cancelled, sweeping on every tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Sweeper: started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sweeper: stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep executes one maintenance pass. Each target is swept independently so
// one failure does not starve the others.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := time.Now()

	if removed, err := s.refresh.DeleteExpired(ctx, now); err != nil {
		s.logger.Error("Sweeper: refresh token sweep failed", "error", err.Error())
	} else if removed > 0 {
		s.logger.Info("Sweeper: removed expired refresh tokens", "count", removed)
	}

	if removed, err := s.denylist.DeleteExpired(ctx); err != nil {
		s.logger.Error("Sweeper: denylist sweep failed", "error", err.Error())
	} else if removed > 0 {
		s.logger.Info("Sweeper: removed expired denylist entries", "count", removed)
	}

	if s.tracker != nil {
		// Records idle past the widest lockout tier can no longer matter.
		maxIdle := 2 * s.tracker.MaxTierDuration()
		if removed := s.tracker.SweepStale(maxIdle); removed > 0 {
			s.logger.Info("Sweeper: removed stale lockout records", "count", removed)
		}
	}
}
