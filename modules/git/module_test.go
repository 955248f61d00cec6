package git

import (
	"context"
	"os"
	osexec "os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipewerk/pipewerk/internal/registry"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := osexec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

// initRepo creates a repository with one committed data file and returns its path.
func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	mustGit(t, dir, "init", "-q")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "chart_metadata.json"), []byte(`{}`), 0o644))
	mustGit(t, dir, "add", ".")
	mustGit(t, dir,
		"-c", "user.name=test", "-c", "user.email=test@example.com",
		"commit", "-q", "-m", "initial")
	return dir
}

func mustGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := osexec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
}

func commitInput(t *testing.T) *Input {
	t.Helper()
	return &Input{
		Action:      "commit",
		Paths:       []string{"data/chart_metadata.json"},
		Message:     "Update chart metadata",
		AuthorName:  "chart-bot",
		AuthorEmail: "chart-bot@example.com",
	}
}

func TestOnRunGit_CommitThenNoOp(t *testing.T) {
	requireGit(t)

	dir := initRepo(t)
	rt := &registry.Runtime{Workdir: dir}

	// A changed tracked file produces exactly one commit.
	path := filepath.Join(dir, "data", "chart_metadata.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"updated":true}`), 0o644))

	out, err := OnRunGit(context.Background(), rt, commitInput(t))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"committed": true}, out)

	// Running again over unchanged data must not commit.
	out, err = OnRunGit(context.Background(), rt, commitInput(t))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"committed": false}, out)
}

func TestOnRunGit_CommitValidation(t *testing.T) {
	rt := &registry.Runtime{Workdir: t.TempDir()}

	_, err := OnRunGit(context.Background(), rt, &Input{Action: "commit", Message: "m"})
	assert.ErrorContains(t, err, "paths")

	_, err = OnRunGit(context.Background(), rt, &Input{Action: "commit", Paths: []string{"data"}})
	assert.ErrorContains(t, err, "message")
}

func TestOnRunGit_UnknownAction(t *testing.T) {
	rt := &registry.Runtime{Workdir: t.TempDir()}
	_, err := OnRunGit(context.Background(), rt, &Input{Action: "rebase"})
	assert.ErrorContains(t, err, "unknown git action")
}

func TestOnRunGit_SyncWithoutRepoOrURL(t *testing.T) {
	rt := &registry.Runtime{Workdir: t.TempDir()}
	_, err := OnRunGit(context.Background(), rt, &Input{Action: "sync"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "no 'url' to clone from")
}

func TestOnRunGit_SyncClonesFromLocalRemote(t *testing.T) {
	requireGit(t)

	origin := initRepo(t)
	target := filepath.Join(t.TempDir(), "checkout")
	rt := &registry.Runtime{Workdir: filepath.Dir(target)}

	out, err := OnRunGit(context.Background(), rt, &Input{
		Action: "sync",
		URL:    origin,
		Dir:    target,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"cloned": true}, out)
	assert.FileExists(t, filepath.Join(target, "data", "chart_metadata.json"))

	// A second sync of the same checkout pulls instead of cloning.
	out, err = OnRunGit(context.Background(), rt, &Input{
		Action: "sync",
		URL:    origin,
		Dir:    target,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"cloned": false}, out)
}

func TestCommitArgs(t *testing.T) {
	in := &Input{
		Paths:       []string{"data/a.json", "data/b.json"},
		Message:     "msg",
		AuthorName:  "bot",
		AuthorEmail: "bot@example.com",
	}
	assert.Equal(t, []string{
		"-c", "user.name=bot",
		"-c", "user.email=bot@example.com",
		"commit", "-m", "msg", "--",
		"data/a.json", "data/b.json",
	}, commitArgs(in))

	bare := &Input{Paths: []string{"p"}, Message: "msg"}
	assert.Equal(t, []string{"commit", "-m", "msg", "--", "p"}, commitArgs(bare))
}

func TestHasChanges(t *testing.T) {
	assert.False(t, hasChanges(""))
	assert.False(t, hasChanges("\n  \n"))
	assert.True(t, hasChanges(" M data/chart_metadata.json\n"))
}
