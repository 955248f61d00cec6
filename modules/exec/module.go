// Package exec provides the 'exec' step kind: run an external command and
// fail the step on a non-zero exit. The fetch and chart collaborators are
// invoked through this kind; their flags and exit codes are theirs, not ours.
package exec

import (
	"context"
	"errors"
	"fmt"
	osexec "os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pipewerk/pipewerk/internal/ctxlog"
	"github.com/pipewerk/pipewerk/internal/registry"
)

// tailLineCount bounds how much captured output ends up in the run record.
const tailLineCount = 20

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' block of an exec step.
type Input struct {
	Command string            `hcl:"command"`
	Args    []string          `hcl:"args,optional"`
	Dir     string            `hcl:"dir,optional"`
	Env     map[string]string `hcl:"env,optional"`
}

// OnRunExec is the handler for the 'exec' step kind.
func OnRunExec(ctx context.Context, rt *registry.Runtime, input any) (map[string]any, error) {
	in := input.(*Input)
	logger := ctxlog.FromContext(ctx)

	dir := resolveDir(rt.Workdir, in.Dir)
	cmd := osexec.CommandContext(ctx, in.Command, in.Args...)
	cmd.Dir = dir
	cmd.Env = appendEnv(rt.Env, in.Env)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Info("Running command.",
		"command", rt.RedactString(strings.Join(append([]string{in.Command}, in.Args...), " ")),
		"dir", dir,
	)

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	output := map[string]any{
		"exit_code":   exitCode(err),
		"duration_ms": duration.Milliseconds(),
		"stdout_tail": rt.RedactString(tailLines(stdout.String(), tailLineCount)),
		"stderr_tail": rt.RedactString(tailLines(stderr.String(), tailLineCount)),
	}

	if err != nil {
		if ctx.Err() != nil {
			return output, fmt.Errorf("command %q aborted: %w", in.Command, ctx.Err())
		}
		return output, fmt.Errorf("command %q failed: %w", in.Command, err)
	}
	return output, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("exec", &registry.RegisteredStep{
		NewInput: func() any { return new(Input) },
		Run:      OnRunExec,
	})
}

// resolveDir interprets dir relative to the run's workdir.
func resolveDir(workdir, dir string) string {
	if dir == "" {
		return workdir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(workdir, dir)
}

// appendEnv layers the step's own env map over the runtime environment.
func appendEnv(base []string, overlay map[string]string) []string {
	if len(overlay) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(overlay))
	out = append(out, base...)
	keys := make([]string, 0, len(overlay))
	for k := range overlay {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	// Later entries win in exec.Cmd, so a plain append overrides cleanly.
	for _, k := range keys {
		out = append(out, k+"="+overlay[k])
	}
	return out
}

// exitCode extracts the child's exit status; 0 on success, -1 when the
// process never ran or was killed.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *osexec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// tailLines returns at most maxLines trailing lines of input.
func tailLines(input string, maxLines int) string {
	if input == "" {
		return ""
	}
	lines := strings.Split(strings.TrimRight(input, "\n"), "\n")
	if len(lines) <= maxLines {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-maxLines:], "\n")
}
