package exec

import (
	"context"
	"errors"
	osexec "os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipewerk/pipewerk/internal/registry"
)

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := osexec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestOnRunExec_Success(t *testing.T) {
	requireSh(t)

	rt := &registry.Runtime{Workdir: t.TempDir(), Env: []string{"GREETING=hello"}}
	out, err := OnRunExec(context.Background(), rt, &Input{
		Command: "sh",
		Args:    []string{"-c", `echo "$GREETING"`},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, out["exit_code"])
	assert.Equal(t, "hello", out["stdout_tail"])
	assert.Empty(t, out["stderr_tail"])
}

func TestOnRunExec_NonZeroExit(t *testing.T) {
	requireSh(t)

	rt := &registry.Runtime{Workdir: t.TempDir()}
	out, err := OnRunExec(context.Background(), rt, &Input{
		Command: "sh",
		Args:    []string{"-c", "echo boom >&2; exit 3"},
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, `command "sh" failed`)

	assert.Equal(t, 3, out["exit_code"])
	assert.Equal(t, "boom", out["stderr_tail"])
}

func TestOnRunExec_StepEnvOverridesRuntime(t *testing.T) {
	requireSh(t)

	rt := &registry.Runtime{Workdir: t.TempDir(), Env: []string{"DATA_DIR=/old"}}
	out, err := OnRunExec(context.Background(), rt, &Input{
		Command: "sh",
		Args:    []string{"-c", `echo "$DATA_DIR"`},
		Env:     map[string]string{"DATA_DIR": "/new"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/new", out["stdout_tail"])
}

func TestOnRunExec_CancelledContext(t *testing.T) {
	if _, err := osexec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	rt := &registry.Runtime{Workdir: t.TempDir()}
	_, err := OnRunExec(ctx, rt, &Input{
		Command: "sleep",
		Args:    []string{"30"},
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "aborted")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestOnRunExec_RedactsSecrets(t *testing.T) {
	requireSh(t)

	rt := &registry.Runtime{
		Workdir: t.TempDir(),
		Redact: func(s string) string {
			return strings.ReplaceAll(s, "hunter2", "***")
		},
	}
	out, err := OnRunExec(context.Background(), rt, &Input{
		Command: "sh",
		Args:    []string{"-c", "echo token=hunter2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "token=***", out["stdout_tail"])
}

func TestResolveDir(t *testing.T) {
	workdir := filepath.Join("/", "work")
	assert.Equal(t, workdir, resolveDir(workdir, ""))
	assert.Equal(t, filepath.Join(workdir, "sub"), resolveDir(workdir, "sub"))
	assert.Equal(t, "/abs", resolveDir(workdir, "/abs"))
}

func TestAppendEnv(t *testing.T) {
	base := []string{"A=1", "B=2"}

	assert.Equal(t, base, appendEnv(base, nil))

	got := appendEnv(base, map[string]string{"C": "3", "B": "override"})
	assert.Equal(t, []string{"A=1", "B=2", "B=override", "C=3"}, got)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, -1, exitCode(errors.New("not started")))
}

func TestTailLines(t *testing.T) {
	assert.Empty(t, tailLines("", 3))
	assert.Equal(t, "a\nb", tailLines("a\nb\n", 3))
	assert.Equal(t, "c\nd\ne", tailLines("a\nb\nc\nd\ne\n", 3))
}
