package scheduler

import (
	"context"
	"log/slog"
	"time"

	"newswatch/internal/domain"
)

// Runner is one pipeline invocation.
type Runner interface {
	Run(ctx context.Context) (*domain.RunStats, error)
}

// Scheduler reruns the pipeline on a fixed interval. Runs never
// overlap: each one finishes (or times out) before the next tick is
// consumed.
type Scheduler struct {
	runner     Runner
	interval   time.Duration
	runTimeout time.Duration
	logger     *slog.Logger
}

func NewScheduler(runner Runner, interval, runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:     runner,
		interval:   interval,
		runTimeout: runTimeout,
		logger:     logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	if _, err := s.runner.Run(runCtx); err != nil {
		s.logger.Error("run failed", "error", err)
	}
}
