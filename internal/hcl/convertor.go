package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/pipewerk/pipewerk/internal/ctxlog"
)

// Converter is the HCL-specific implementation of the config.Converter
// interface. Argument bodies are evaluated lazily, at step execution time,
// so expressions see the run's full evaluation context.
type Converter struct{}

// NewConverter creates a new HCL converter.
func NewConverter() *Converter {
	return &Converter{}
}

// DecodeArguments evaluates the arguments body against evalCtx and populates
// the target struct. A nil body decodes as an empty block, which still fails
// if the target declares required attributes.
func (c *Converter) DecodeArguments(ctx context.Context, target any, body hcl.Body, evalCtx *hcl.EvalContext) error {
	logger := ctxlog.FromContext(ctx)

	if body == nil {
		body = hcl.EmptyBody()
	}
	if diags := gohcl.DecodeBody(body, evalCtx, target); diags.HasErrors() {
		return fmt.Errorf("failed to decode arguments: %w", diags)
	}

	logger.Debug("Step arguments decoded.", "target_type", fmt.Sprintf("%T", target))
	return nil
}

// DecodeEnv evaluates a step's env expression against evalCtx into a string
// map. The expression is carried raw through loading so it may reference
// secret.*, which only joins the context per run.
func (c *Converter) DecodeEnv(ctx context.Context, expr hcl.Expression, evalCtx *hcl.EvalContext) (map[string]string, error) {
	if expr == nil {
		return nil, nil
	}

	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to evaluate env: %w", diags)
	}
	if val.IsNull() {
		return nil, nil
	}
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return nil, fmt.Errorf("env must be a map of strings, got %s", val.Type().FriendlyName())
	}

	out := make(map[string]string, val.LengthInt())
	for k, v := range val.AsValueMap() {
		str, err := convert.Convert(v, cty.String)
		if err != nil {
			return nil, fmt.Errorf("env entry %q is not a string: %w", k, err)
		}
		if str.IsNull() {
			return nil, fmt.Errorf("env entry %q is null", k)
		}
		out[k] = str.AsString()
	}

	ctxlog.FromContext(ctx).Debug("Step env decoded.", "entries", len(out))
	return out, nil
}
