// Package secrets resolves the secret declarations of a pipeline against the
// host environment. Secrets stay opaque here: the package binds them into the
// run (environment variables, optional credential files) and redacts them
// from anything that gets logged, but never interprets them.
package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pipewerk/pipewerk/internal/config"
	"github.com/pipewerk/pipewerk/internal/ctxlog"
)

// LookupFunc reports a named value from the host environment. os.LookupEnv
// satisfies it; tests substitute a map-backed lookup.
type LookupFunc func(name string) (string, bool)

// Bundle holds the resolved secrets for one run.
type Bundle struct {
	values  map[string]string
	exports map[string]string
	files   []string
}

// Resolve looks up every declared secret and materializes credential files
// under baseDir. A missing secret fails the run before any step executes.
func Resolve(ctx context.Context, defs []*config.Secret, lookup LookupFunc, baseDir string) (*Bundle, error) {
	logger := ctxlog.FromContext(ctx)
	if lookup == nil {
		lookup = os.LookupEnv
	}

	b := &Bundle{
		values:  make(map[string]string, len(defs)),
		exports: make(map[string]string),
	}

	for _, def := range defs {
		value, ok := lookup(def.Name)
		if !ok || value == "" {
			return nil, fmt.Errorf("secret %q is not set in the environment", def.Name)
		}
		b.values[def.Name] = value

		if def.File == "" {
			continue
		}
		path := def.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create directory for secret file %q: %w", path, err)
		}
		if err := os.WriteFile(path, []byte(value), 0o600); err != nil {
			return nil, fmt.Errorf("failed to write secret file %q: %w", path, err)
		}
		exportAs := def.ExportPathAs
		if exportAs == "" {
			exportAs = def.Name + "_FILE"
		}
		b.exports[exportAs] = path
		b.files = append(b.files, path)
		logger.Debug("Materialized secret file.", "secret", def.Name, "export", exportAs)
	}

	logger.Debug("Secrets resolved.", "count", len(b.values))
	return b, nil
}

// Values returns the secret values keyed by declared name, for the run's
// evaluation context.
func (b *Bundle) Values() map[string]string {
	out := make(map[string]string, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

// Env returns the environment entries a run injects into every step: the
// secret values themselves plus any exported credential-file paths.
func (b *Bundle) Env() []string {
	entries := make([]string, 0, len(b.values)+len(b.exports))
	for k, v := range b.values {
		entries = append(entries, k+"="+v)
	}
	for k, v := range b.exports {
		entries = append(entries, k+"="+v)
	}
	sort.Strings(entries)
	return entries
}

// Cleanup removes the credential files materialized by Resolve, so secret
// blobs do not outlive the run on a shared runner. Best effort: the files are
// rewritten on the next run regardless.
func (b *Bundle) Cleanup(ctx context.Context) {
	if b == nil {
		return
	}
	logger := ctxlog.FromContext(ctx)
	for _, path := range b.files {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("Failed to remove secret file.", "path", path, "error", err)
		}
	}
}

// Redact replaces every secret value occurring in s with a placeholder. Use
// it on anything derived from step inputs before logging.
func (b *Bundle) Redact(s string) string {
	if b == nil {
		return s
	}
	for _, v := range b.values {
		if v != "" {
			s = strings.ReplaceAll(s, v, "***")
		}
	}
	return s
}
