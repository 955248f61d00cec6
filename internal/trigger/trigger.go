// Package trigger owns the runner's time-based trigger surface. It wraps a
// cron scheduler configured so that overlapping firings of the same pipeline
// are skipped while a run is in flight, closing the concurrent-commit race a
// naive scheduler would allow.
package trigger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler fires pipeline runs on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// New creates a scheduler. Panics recovered from jobs and skipped overlaps
// are reported through the given logger.
func New(logger *slog.Logger) *Scheduler {
	adapter := &cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(adapter),
			cron.SkipIfStillRunning(adapter),
		)),
		logger: logger,
	}
}

// Validate reports whether spec is an acceptable schedule expression.
func Validate(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// Add registers job to fire per spec.
func (s *Scheduler) Add(spec string, job func()) error {
	if err := Validate(spec); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(spec, job); err != nil {
		return fmt.Errorf("failed to schedule job: %w", err)
	}
	return nil
}

// Run starts the scheduler and blocks until ctx is cancelled. A run already
// in flight at cancellation time finishes before Run returns.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	s.logger.Info("Scheduler started.", "entries", len(s.cron.Entries()))
	<-ctx.Done()
	s.logger.Info("Scheduler stopping.")
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("Scheduler stopped.")
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (c *cronLogger) Info(msg string, keysAndValues ...any) {
	// The chain wrappers log here when they skip an overlapping firing.
	c.logger.Info(msg, keysAndValues...)
}

func (c *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
