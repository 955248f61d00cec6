package secrets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipewerk/pipewerk/internal/config"
)

func mapLookup(values map[string]string) LookupFunc {
	return func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	}
}

func TestResolve_Values(t *testing.T) {
	lookup := mapLookup(map[string]string{"API_KEY": "hunter2"})
	bundle, err := Resolve(context.Background(), []*config.Secret{{Name: "API_KEY"}}, lookup, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"API_KEY": "hunter2"}, bundle.Values())
	assert.Equal(t, []string{"API_KEY=hunter2"}, bundle.Env())
}

func TestResolve_Missing(t *testing.T) {
	_, err := Resolve(context.Background(), []*config.Secret{{Name: "ABSENT"}}, mapLookup(nil), t.TempDir())
	require.Error(t, err)
	assert.ErrorContains(t, err, `secret "ABSENT" is not set`)
}

func TestResolve_EmptyValueIsMissing(t *testing.T) {
	lookup := mapLookup(map[string]string{"EMPTY": ""})
	_, err := Resolve(context.Background(), []*config.Secret{{Name: "EMPTY"}}, lookup, t.TempDir())
	require.Error(t, err)
}

func TestResolve_MaterializesFile(t *testing.T) {
	baseDir := t.TempDir()
	defs := []*config.Secret{{
		Name:         "CREDENTIALS_JSON",
		File:         ".secrets/credentials.json",
		ExportPathAs: "CREDENTIALS_PATH",
	}}
	lookup := mapLookup(map[string]string{"CREDENTIALS_JSON": `{"type":"service_account"}`})

	bundle, err := Resolve(context.Background(), defs, lookup, baseDir)
	require.NoError(t, err)

	path := filepath.Join(baseDir, ".secrets", "credentials.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"service_account"}`, string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	assert.Contains(t, bundle.Env(), "CREDENTIALS_PATH="+path)
}

func TestResolve_DefaultExportName(t *testing.T) {
	baseDir := t.TempDir()
	defs := []*config.Secret{{Name: "TOKEN", File: "token.txt"}}
	bundle, err := Resolve(context.Background(), defs, mapLookup(map[string]string{"TOKEN": "abc"}), baseDir)
	require.NoError(t, err)
	assert.Contains(t, bundle.Env(), "TOKEN_FILE="+filepath.Join(baseDir, "token.txt"))
}

func TestCleanup_RemovesMaterializedFiles(t *testing.T) {
	baseDir := t.TempDir()
	defs := []*config.Secret{{Name: "TOKEN", File: "token.txt"}}
	bundle, err := Resolve(context.Background(), defs, mapLookup(map[string]string{"TOKEN": "abc"}), baseDir)
	require.NoError(t, err)

	path := filepath.Join(baseDir, "token.txt")
	require.FileExists(t, path)

	bundle.Cleanup(context.Background())
	assert.NoFileExists(t, path)

	// Idempotent, and safe on a nil bundle.
	bundle.Cleanup(context.Background())
	var nilBundle *Bundle
	nilBundle.Cleanup(context.Background())
}

func TestRedact(t *testing.T) {
	lookup := mapLookup(map[string]string{"API_KEY": "hunter2"})
	bundle, err := Resolve(context.Background(), []*config.Secret{{Name: "API_KEY"}}, lookup, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "curl -H 'Authorization: ***'", bundle.Redact("curl -H 'Authorization: hunter2'"))
	assert.Equal(t, "no secrets here", bundle.Redact("no secrets here"))

	var nilBundle *Bundle
	assert.Equal(t, "passthrough", nilBundle.Redact("passthrough"))
}
