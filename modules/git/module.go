// Package git provides the 'git' step kind. All version-control mechanics
// belong to the git CLI; this module only sequences it: 'sync' keeps the
// checkout current before a run, 'commit' conditionally publishes tracked
// metadata under a fixed bot identity.
package git

import (
	"context"
	"fmt"
	"os"
	osexec "os/exec"
	"path/filepath"
	"strings"

	"github.com/pipewerk/pipewerk/internal/ctxlog"
	"github.com/pipewerk/pipewerk/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' block of a git step.
type Input struct {
	Action string `hcl:"action"`

	// commit
	Paths       []string `hcl:"paths,optional"`
	Message     string   `hcl:"message,optional"`
	AuthorName  string   `hcl:"author_name,optional"`
	AuthorEmail string   `hcl:"author_email,optional"`
	Push        bool     `hcl:"push,optional"`
	Remote      string   `hcl:"remote,optional"`

	// sync
	URL string `hcl:"url,optional"`
	Dir string `hcl:"dir,optional"`
}

// OnRunGit is the handler for the 'git' step kind.
func OnRunGit(ctx context.Context, rt *registry.Runtime, input any) (map[string]any, error) {
	in := input.(*Input)
	switch strings.ToLower(in.Action) {
	case "commit":
		return handleCommit(ctx, rt, in)
	case "sync":
		return handleSync(ctx, rt, in)
	default:
		return nil, fmt.Errorf("unknown git action: %q", in.Action)
	}
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterStep("git", &registry.RegisteredStep{
		NewInput: func() any { return new(Input) },
		Run:      OnRunGit,
	})
}

// handleCommit stages the given paths and commits them under the configured
// identity, pushing when asked. When the paths show no diff the whole step is
// a no-op: running twice over unchanged data must not produce a second commit.
func handleCommit(ctx context.Context, rt *registry.Runtime, in *Input) (map[string]any, error) {
	logger := ctxlog.FromContext(ctx).With("action", "commit")

	if len(in.Paths) == 0 {
		return nil, fmt.Errorf("git commit requires at least one entry in 'paths'")
	}
	if in.Message == "" {
		return nil, fmt.Errorf("git commit requires 'message'")
	}

	dir := resolveDir(rt.Workdir, in.Dir)
	statusArgs := append([]string{"status", "--porcelain", "--"}, in.Paths...)
	status, err := runGit(ctx, rt, dir, statusArgs...)
	if err != nil {
		return nil, err
	}
	if !hasChanges(status) {
		logger.Info("Tracked paths unchanged, nothing to commit.", "paths", in.Paths)
		return map[string]any{"committed": false}, nil
	}

	if _, err := runGit(ctx, rt, dir, append([]string{"add", "--"}, in.Paths...)...); err != nil {
		return nil, err
	}
	if _, err := runGit(ctx, rt, dir, commitArgs(in)...); err != nil {
		return nil, err
	}
	logger.Info("Committed tracked paths.", "paths", in.Paths)

	if in.Push {
		remote := in.Remote
		if remote == "" {
			remote = "origin"
		}
		if _, err := runGit(ctx, rt, dir, "push", remote, "HEAD"); err != nil {
			return nil, err
		}
		logger.Info("Pushed commit.", "remote", remote)
	}

	return map[string]any{"committed": true}, nil
}

// handleSync ensures a current checkout: clone when the directory holds no
// repository and a URL is given, fast-forward pull otherwise.
func handleSync(ctx context.Context, rt *registry.Runtime, in *Input) (map[string]any, error) {
	logger := ctxlog.FromContext(ctx).With("action", "sync")
	dir := resolveDir(rt.Workdir, in.Dir)

	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to probe %q for a repository: %w", dir, err)
		}
		if in.URL == "" {
			return nil, fmt.Errorf("no repository at %q and no 'url' to clone from", dir)
		}
		logger.Info("Cloning repository.", "dir", dir)
		if _, err := runGit(ctx, rt, filepath.Dir(dir), "clone", in.URL, dir); err != nil {
			return nil, err
		}
		return map[string]any{"cloned": true}, nil
	}

	logger.Info("Updating existing checkout.", "dir", dir)
	if _, err := runGit(ctx, rt, dir, "pull", "--ff-only"); err != nil {
		return nil, err
	}
	return map[string]any{"cloned": false}, nil
}

// commitArgs builds the commit invocation, wiring the bot identity through
// one-off config flags so nothing leaks into the repository config.
func commitArgs(in *Input) []string {
	args := []string{}
	if in.AuthorName != "" {
		args = append(args, "-c", "user.name="+in.AuthorName)
	}
	if in.AuthorEmail != "" {
		args = append(args, "-c", "user.email="+in.AuthorEmail)
	}
	args = append(args, "commit", "-m", in.Message, "--")
	return append(args, in.Paths...)
}

// hasChanges reports whether porcelain status output lists any entry.
func hasChanges(status string) bool {
	return strings.TrimSpace(status) != ""
}

// runGit executes one git command in dir, returning combined output.
func runGit(ctx context.Context, rt *registry.Runtime, dir string, args ...string) (string, error) {
	cmd := osexec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = rt.Env
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s failed: %w: %s",
			args[0], err, rt.RedactString(strings.TrimSpace(string(out))))
	}
	return string(out), nil
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
