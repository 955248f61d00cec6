package config

import (
	"time"

	"github.com/hashicorp/hcl/v2"
)

// Model is the unified, format-agnostic representation of a loaded pipeline
// definition: one pipeline block plus its ordered steps.
type Model struct {
	Pipeline *Pipeline
	Steps    []*Step
}

// Pipeline holds the run-level settings shared by every step.
type Pipeline struct {
	Name     string
	Schedule string
	Workdir  string
	DataDir  string
	Env      map[string]string
	Secrets  []*Secret
}

// Secret declares a value that must be present in the host environment when a
// run starts. If File is set, the value is materialized to that path (relative
// to the workdir) and the path is exported under ExportPathAs, which is how
// credential blobs reach collaborators that expect a file.
type Secret struct {
	Name         string
	File         string
	ExportPathAs string
}

// Step is the format-agnostic representation of a `step` block. Arguments is
// the raw, not-yet-evaluated body of the step's `arguments` block, and Env is
// the raw expression of its `env` attribute; both are decoded by the
// Converter at execution time so that expressions can reference the run's
// environment and secrets.
type Step struct {
	Kind      string
	Name      string
	Arguments hcl.Body
	Env       hcl.Expression
	Timeout   time.Duration
}

// StepByName returns the step with the given instance name, or nil.
func (m *Model) StepByName(name string) *Step {
	for _, s := range m.Steps {
		if s.Name == name {
			return s
		}
	}
	return nil
}
