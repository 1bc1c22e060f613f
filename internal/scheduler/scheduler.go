package scheduler

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"message_archiver/internal/domain"
	"message_archiver/internal/telemetry"
)

// Archiver defines the interface for one archive cycle.
type Archiver interface {
	ArchiveCycle(ctx context.Context) (*domain.CycleStats, error)
}

type Scheduler struct {
	archiver Archiver
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(archiver Archiver, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		archiver: archiver,
		interval: interval,
		logger:   logger,
	}
}

// Start runs cycles until the context is cancelled. A failing cycle never
// stops the loop; the next cycle starts after the normal interval.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle is the outermost safety net: inner components already handle
// recoverable conditions, so a panic here is an unexpected code path and is
// logged with its stack instead of killing the process.
func (s *Scheduler) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("cycle panicked",
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	telemetry.CyclesTotal.Inc()

	if _, err := s.archiver.ArchiveCycle(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("cycle failed", "error", err)
	}
}
