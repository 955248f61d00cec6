package config

import (
	"context"

	"github.com/hashicorp/hcl/v2"
)

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads a pipeline definition from a file or directory, translates
	// it into the format-agnostic model, and returns a matching Converter.
	Load(ctx context.Context, path string) (*Model, Converter, error)
}

// Converter is the interface for format-specific data binding. It bridges a
// step's raw arguments body and env expression and the Go values its handler
// expects.
type Converter interface {
	// DecodeArguments evaluates a step's arguments body against evalCtx and
	// populates the target Go struct, enforcing required attributes.
	DecodeArguments(ctx context.Context, target any, body hcl.Body, evalCtx *hcl.EvalContext) error

	// DecodeEnv evaluates a step's env expression against evalCtx into a
	// string map. A nil expression decodes as an absent attribute.
	DecodeEnv(ctx context.Context, expr hcl.Expression, evalCtx *hcl.EvalContext) (map[string]string, error)
}
