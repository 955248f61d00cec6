// Package engine executes a loaded pipeline: strictly sequential steps,
// fail-fast, one run at a time, with every run persisted through a Recorder.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/pipewerk/pipewerk/internal/config"
	"github.com/pipewerk/pipewerk/internal/ctxlog"
	hclcfg "github.com/pipewerk/pipewerk/internal/hcl"
	"github.com/pipewerk/pipewerk/internal/registry"
	"github.com/pipewerk/pipewerk/internal/secrets"
	"github.com/pipewerk/pipewerk/internal/snapshot"
)

// Recorder persists run records. The engine tolerates a nil Recorder, which
// disables history.
type Recorder interface {
	RecordRun(ctx context.Context, record *RunRecord) error
}

// Engine runs pipelines. It holds no per-run state; Run may be called
// repeatedly, but never concurrently for the same working tree — the trigger
// layer enforces that.
type Engine struct {
	registry  *registry.Registry
	converter config.Converter
	recorder  Recorder
	snap      *snapshot.Snapshotter
	environ   func() []string
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder sets the run-record sink.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithEnviron overrides the host environment a run sees. Secrets, the env.*
// evaluation scope, and the child environment all resolve against the same
// snapshot.
func WithEnviron(environ func() []string) Option {
	return func(e *Engine) { e.environ = environ }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine bound to the given step registry and converter.
func New(reg *registry.Registry, converter config.Converter, opts ...Option) *Engine {
	e := &Engine{
		registry:  reg,
		converter: converter,
		snap:      snapshot.New(),
		environ:   os.Environ,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes every step of the model in declaration order. The returned
// record is always non-nil and always recorded, success or failure. The error
// is non-nil iff the run failed.
func (e *Engine) Run(ctx context.Context, model *config.Model, trigger Trigger) (*RunRecord, error) {
	pipeline := model.Pipeline
	logger := ctxlog.FromContext(ctx).With("pipeline", pipeline.Name, "trigger", string(trigger))
	ctx = ctxlog.WithLogger(ctx, logger)

	record := &RunRecord{
		ID:        uuid.NewString(),
		Pipeline:  pipeline.Name,
		Trigger:   trigger,
		Status:    StatusRunning,
		StartedAt: e.now(),
	}
	logger = logger.With("run_id", record.ID)
	logger.Info("Run started.", "steps", len(model.Steps))

	runErr := e.run(ctx, model, record)

	record.FinishedAt = e.now()
	if runErr != nil {
		record.Status = StatusFailed
		record.Error = runErr.Error()
		logger.Error("Run failed.", "error", runErr, "failed_step", record.FailedStep())
	} else {
		record.Status = StatusDone
		logger.Info("Run finished.", "data_changed", record.DataChanged(), "duration", record.FinishedAt.Sub(record.StartedAt))
	}

	if e.recorder != nil {
		if err := e.recorder.RecordRun(ctx, record); err != nil {
			logger.Error("Failed to persist run record.", "error", err)
			if runErr == nil {
				runErr = fmt.Errorf("failed to persist run record: %w", err)
			}
		}
	}
	return record, runErr
}

// run holds the body of a run so Run can finalize the record in one place.
func (e *Engine) run(ctx context.Context, model *config.Model, record *RunRecord) error {
	pipeline := model.Pipeline
	logger := ctxlog.FromContext(ctx)

	workdir, err := resolveWorkdir(pipeline.Workdir)
	if err != nil {
		return err
	}

	environ := e.environ()
	bundle, err := secrets.Resolve(ctx, pipeline.Secrets, lookupIn(environ), workdir)
	if err != nil {
		return err
	}
	// Materialized credential files must not outlive the run.
	defer bundle.Cleanup(ctx)

	dataDir := ""
	if pipeline.DataDir != "" {
		dataDir = filepath.Join(workdir, pipeline.DataDir)
	}
	record.DigestBefore, err = e.snap.Digest(ctx, dataDir)
	if err != nil {
		return err
	}

	evalCtx := evalContext(bundle, environ)
	baseEnv := mergeEnv(environ, mapToEnv(pipeline.Env), bundle.Env())

	record.Steps = make([]StepResult, len(model.Steps))
	var failed error
	for i, step := range model.Steps {
		result := &record.Steps[i]
		result.Name = step.Name
		result.Kind = step.Kind
		result.Status = StatusPending

		if failed != nil {
			result.Status = StatusSkipped
			logger.Info("Step skipped after earlier failure.", "step", step.Name)
			continue
		}

		if err := e.runStep(ctx, step, result, evalCtx, workdir, baseEnv, bundle); err != nil {
			failed = fmt.Errorf("step %q failed: %w", step.Name, err)
		}
	}

	digestAfter, err := e.snap.Digest(ctx, dataDir)
	if err != nil {
		if failed == nil {
			return err
		}
		logger.Error("Failed to digest data directory after run.", "error", err)
	} else {
		record.DigestAfter = digestAfter
	}

	return failed
}

// runStep decodes a step's arguments and invokes its handler, honoring the
// step's timeout.
func (e *Engine) runStep(
	ctx context.Context,
	step *config.Step,
	result *StepResult,
	evalCtx *hcl.EvalContext,
	workdir string,
	baseEnv []string,
	bundle *secrets.Bundle,
) error {
	logger := ctxlog.FromContext(ctx).With("step", step.Name, "kind", step.Kind)
	logger.Info("Step started.")

	result.Status = StatusRunning
	result.StartedAt = e.now()
	defer func() {
		result.FinishedAt = e.now()
	}()

	fail := func(err error) error {
		result.Status = StatusFailed
		result.Error = err.Error()
		return err
	}

	handler, ok := e.registry.Lookup(step.Kind)
	if !ok {
		// Normally caught by registry validation at startup.
		return fail(fmt.Errorf("unknown step kind %q", step.Kind))
	}

	input := handler.NewInput()
	if err := e.converter.DecodeArguments(ctx, input, step.Arguments, evalCtx); err != nil {
		return fail(err)
	}

	stepEnv, err := e.converter.DecodeEnv(ctx, step.Env, evalCtx)
	if err != nil {
		return fail(err)
	}

	rt := &registry.Runtime{
		Workdir: workdir,
		Env:     mergeEnv(baseEnv, mapToEnv(stepEnv)),
		Redact:  bundle.Redact,
	}

	stepCtx := ctxlog.WithLogger(ctx, logger)
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(stepCtx, step.Timeout)
		defer cancel()
	}

	output, err := handler.Run(stepCtx, rt, input)
	if err != nil {
		logger.Error("Step failed.", "error", bundle.Redact(err.Error()))
		return fail(err)
	}

	result.Status = StatusDone
	result.Output = output
	logger.Info("Step finished.", "duration", e.now().Sub(result.StartedAt))
	return nil
}

// evalContext extends the load-time context with the run's secrets, so step
// arguments and env maps may reference env.* and secret.*.
func evalContext(bundle *secrets.Bundle, environ []string) *hcl.EvalContext {
	evalCtx := hclcfg.BaseEvalContext(environ)
	values := bundle.Values()
	secretVals := make(map[string]cty.Value, len(values))
	for k, v := range values {
		secretVals[k] = cty.StringVal(v)
	}
	if len(secretVals) > 0 {
		evalCtx.Variables["secret"] = cty.ObjectVal(secretVals)
	} else {
		evalCtx.Variables["secret"] = cty.EmptyObjectVal
	}
	return evalCtx
}

func resolveWorkdir(workdir string) (string, error) {
	if workdir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to determine working directory: %w", err)
		}
		return wd, nil
	}
	abs, err := filepath.Abs(workdir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve workdir %q: %w", workdir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("workdir %q: %w", workdir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("workdir %q is not a directory", workdir)
	}
	return abs, nil
}
