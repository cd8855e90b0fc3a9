// AngelaMos | 2026
// sweeper.go

package lifecycle

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically abandons pending notes older than TTL.
type Sweeper struct {
	orch     *Orchestrator
	logger   *slog.Logger
	ttl      time.Duration
	interval time.Duration
}

func NewSweeper(orch *Orchestrator, logger *slog.Logger, ttl, interval time.Duration) *Sweeper {
	return &Sweeper{
		orch:     orch,
		logger:   logger,
		ttl:      ttl,
		interval: interval,
	}
}

func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	start := time.Now()

	count, err := s.orch.AbandonStale(ctx, s.ttl)
	if err != nil {
		s.logger.Error("pending note sweep failed",
			"error", err,
			"ttl", s.ttl.String(),
		)
		return 0, err
	}

	s.logger.Info("pending note sweep finished",
		"abandoned", count,
		"ttl", s.ttl.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return count, nil
}

// Run sweeps once immediately and then on every interval until ctx ends.
func (s *Sweeper) Run(ctx context.Context) {
	if s.ttl <= 0 || s.interval <= 0 {
		s.logger.Info("pending note sweeper disabled")
		return
	}

	//nolint:errcheck // failures are logged in RunOnce
	_, _ = s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			//nolint:errcheck // failures are logged in RunOnce
			_, _ = s.RunOnce(ctx)
		}
	}
}
