package hcl

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/pipewerk/pipewerk/internal/config"
	"github.com/pipewerk/pipewerk/internal/ctxlog"
	"github.com/pipewerk/pipewerk/internal/fsutil"
	"github.com/pipewerk/pipewerk/internal/schema"
)

// Loader loads pipeline definitions from .hcl files.
type Loader struct {
	parser *hclparse.Parser
}

// NewLoader creates a new HCL loader.
func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

// Load reads the definition at path, which may be a single .hcl file or a
// directory of them, and translates it into the format-agnostic model.
func (l *Loader) Load(ctx context.Context, path string) (*config.Model, config.Converter, error) {
	logger := ctxlog.FromContext(ctx)

	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat pipeline path %q: %w", path, err)
	}

	paths := []string{path}
	if info.IsDir() {
		paths, err = fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan %q for .hcl files: %w", path, err)
		}
		if len(paths) == 0 {
			return nil, nil, fmt.Errorf("no .hcl files found under %q", path)
		}
	}

	var files []*hcl.File
	for _, p := range paths {
		file, diags := l.parser.ParseHCLFile(p)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to parse %s: %w", p, diags)
		}
		files = append(files, file)
	}
	logger.Debug("Parsed pipeline definition files.", "count", len(files))

	var root schema.PipelineConfig
	if diags := gohcl.DecodeBody(hcl.MergeFiles(files), BaseEvalContext(os.Environ()), &root); diags.HasErrors() {
		return nil, nil, fmt.Errorf("failed to decode pipeline definition: %w", diags)
	}

	model, err := translate(&root)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("Pipeline definition loaded.", "pipeline", model.Pipeline.Name, "steps", len(model.Steps))

	return model, NewConverter(), nil
}

// BaseEvalContext builds the evaluation context available while decoding a
// definition: an `env` object holding a snapshot of the given environment.
// Secrets are not in scope at load time; they join the context per run.
func BaseEvalContext(environ []string) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": EnvObject(environ),
		},
	}
}

// EnvObject converts a list of KEY=VALUE pairs into a cty object so HCL
// expressions can reference individual variables as env.KEY.
func EnvObject(environ []string) cty.Value {
	vals := make(map[string]cty.Value, len(environ))
	for _, kv := range environ {
		if idx := strings.Index(kv, "="); idx > 0 {
			vals[kv[:idx]] = cty.StringVal(kv[idx+1:])
		}
	}
	if len(vals) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(vals)
}
