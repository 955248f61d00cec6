package hcl

import (
	"fmt"
	"time"

	"github.com/pipewerk/pipewerk/internal/config"
	"github.com/pipewerk/pipewerk/internal/schema"
)

// translate converts the HCL-specific schema structs into the agnostic model,
// applying the structural validations that do not depend on step kinds.
func translate(root *schema.PipelineConfig) (*config.Model, error) {
	if root.Pipeline == nil {
		return nil, fmt.Errorf("pipeline definition must contain exactly one 'pipeline' block")
	}
	if len(root.Steps) == 0 {
		return nil, fmt.Errorf("pipeline %q defines no steps", root.Pipeline.Name)
	}

	pipeline := &config.Pipeline{
		Name:     root.Pipeline.Name,
		Schedule: root.Pipeline.Schedule,
		Workdir:  root.Pipeline.Workdir,
		DataDir:  root.Pipeline.DataDir,
		Env:      root.Pipeline.Env,
	}
	for _, s := range root.Pipeline.Secrets {
		if s.File == "" && s.ExportPathAs != "" {
			return nil, fmt.Errorf("secret %q sets export_path_as without file", s.Name)
		}
		pipeline.Secrets = append(pipeline.Secrets, &config.Secret{
			Name:         s.Name,
			File:         s.File,
			ExportPathAs: s.ExportPathAs,
		})
	}

	model := &config.Model{Pipeline: pipeline}
	seen := make(map[string]bool, len(root.Steps))
	for _, s := range root.Steps {
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate step instance name %q", s.Name)
		}
		seen[s.Name] = true

		step := &config.Step{
			Kind: s.Kind,
			Name: s.Name,
			// Env is carried raw; it is evaluated per run, with secrets in scope.
			Env: s.Env,
		}
		if s.Arguments != nil {
			step.Arguments = s.Arguments.Body
		}
		if s.Timeout != "" {
			timeout, err := time.ParseDuration(s.Timeout)
			if err != nil {
				return nil, fmt.Errorf("step %q has invalid timeout %q: %w", s.Name, s.Timeout, err)
			}
			if timeout <= 0 {
				return nil, fmt.Errorf("step %q timeout must be positive", s.Name)
			}
			step.Timeout = timeout
		}
		model.Steps = append(model.Steps, step)
	}

	return model, nil
}
