package service

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically deletes sessions past the retention window.
type Sweeper struct {
	authority *Authority
	interval  time.Duration
	logger    *slog.Logger
}

// NewSweeper returns a Sweeper. interval <= 0 disables it: Run returns at once.
func NewSweeper(a *Authority, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{authority: a, interval: interval, logger: logger}
}

// Run sweeps once per interval until ctx is done. Failures are logged and the
// next tick retries.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	n, err := s.authority.CleanupExpiredSessions(ctx)
	if err != nil {
		s.logger.Error("session sweep failed", "error", err)
		return
	}
	s.logger.Debug("session sweep done", "deleted", n)
}
