package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler triggers Runner passes on a cron spec. Ticks that arrive while a
// pass is still running are dropped.
type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
	spec   string
	logger *slog.Logger
}

// New creates a scheduler. spec accepts five-field cron expressions and
// descriptors such as "@every 1m".
func New(runner *Runner, spec string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		runner: runner,
		spec:   spec,
		logger: logger,
	}
}

// Start registers the pass and starts the cron loop. ctx is handed to every
// pass, so cancelling it stops the pass between files.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "schedule", s.spec, "dir", s.runner.Dir())
	return nil
}

// Stop halts the cron loop and waits for a running pass to finish or ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out with a pass still running")
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	summary, err := s.runner.TryRun(ctx)
	switch {
	case errors.Is(err, ErrPassInProgress):
		s.logger.Debug("previous pass still running, skipping tick")
	case err != nil:
		s.logger.Warn("scheduled pass failed", "error", err)
	default:
		s.logger.Debug("scheduled pass finished", "files", len(summary.Outcomes))
	}
}

// RunNow performs one pass outside the schedule, subject to the same
// single-pass guard.
func (s *Scheduler) RunNow(ctx context.Context) {
	s.tick(ctx)
}
