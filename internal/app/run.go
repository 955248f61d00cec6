package app

import (
	"context"
	"fmt"

	"github.com/pipewerk/pipewerk/internal/ctxlog"
	"github.com/pipewerk/pipewerk/internal/engine"
	"github.com/pipewerk/pipewerk/internal/trigger"
)

// Run executes the main application logic based on the provided configuration:
// a single manual run, or a long-lived scheduled loop.
func (a *App) Run(ctx context.Context, appConfig *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if appConfig.Once {
		return a.runOnce(ctx)
	}
	return a.runScheduled(ctx)
}

// runOnce is the manual dispatch surface: run now, exit with the run's outcome.
func (a *App) runOnce(ctx context.Context) error {
	record, err := a.engine.Run(ctx, a.model, engine.TriggerManual)
	if err != nil {
		return fmt.Errorf("run %s failed: %w", record.ID, err)
	}
	return nil
}

// runScheduled fires the pipeline on its cron schedule until ctx is cancelled.
// Overlapping firings are skipped by the trigger layer, so at most one run
// touches the working tree at a time.
func (a *App) runScheduled(ctx context.Context) error {
	schedule := a.model.Pipeline.Schedule
	if schedule == "" {
		return fmt.Errorf("pipeline %q has no schedule; use a schedule attribute or run with -once", a.model.Pipeline.Name)
	}

	sched := trigger.New(a.logger)
	err := sched.Add(schedule, func() {
		// Run errors are already logged and recorded; a failed scheduled run
		// must not take the scheduler down.
		_, _ = a.engine.Run(ctx, a.model, engine.TriggerSchedule)
	})
	if err != nil {
		return err
	}

	a.logger.Info("Pipeline scheduled.", "pipeline", a.model.Pipeline.Name, "schedule", schedule)
	sched.Run(ctx)
	return nil
}
