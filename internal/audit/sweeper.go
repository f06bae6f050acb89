package audit

import (
	"context"
	"log/slog"
	"time"
)

const DefaultSweepInterval = time.Hour

// Sweeper runs the retention sweep on a fixed interval until its context ends.
type Sweeper struct {
	engine   *Engine
	days     int
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(engine *Engine, days int, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{engine: engine, days: days, interval: interval, logger: logger}
}

// Run sweeps once immediately, then on every tick. It returns nil when ctx is
// cancelled; sweep errors are logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("audit: sweeper started", "interval", s.interval, "retention_days", s.days)
	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("audit: sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.engine.SweepExpired(ctx, s.days)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("audit: sweep failed", "err", err)
		}
		return
	}
	if n > 0 {
		s.logger.Info("audit: swept expired entries", "count", n)
	}
}
