// Package schema holds the HCL-tagged structs that mirror the on-disk
// pipeline definition format. The hcl loader decodes into these and then
// translates them into the format-agnostic config model.
package schema

import "github.com/hashicorp/hcl/v2"

// StepArgs represents the content of the 'arguments' block within a step.
// The body is kept raw so expressions can be evaluated at execution time.
type StepArgs struct {
	Body hcl.Body `hcl:",remain"`
}

// Secret represents a `secret` block within the pipeline block.
type Secret struct {
	Name         string `hcl:"name,label"`
	File         string `hcl:"file,optional"`
	ExportPathAs string `hcl:"export_path_as,optional"`
}

// Pipeline represents the single `pipeline` block of a definition.
type Pipeline struct {
	Name     string            `hcl:"name,label"`
	Schedule string            `hcl:"schedule,optional"`
	Workdir  string            `hcl:"workdir,optional"`
	DataDir  string            `hcl:"data_dir,optional"`
	Env      map[string]string `hcl:"env,optional"`
	Secrets  []*Secret         `hcl:"secret,block"`
}

// Step represents a `step` block. Steps execute strictly in declaration
// order; the kind label selects the registered Go handler. The env attribute
// is captured as a raw expression so it can reference the run's secrets,
// which only exist at execution time.
type Step struct {
	Kind      string         `hcl:"kind,label"`
	Name      string         `hcl:"instance_name,label"`
	Arguments *StepArgs      `hcl:"arguments,block"`
	Env       hcl.Expression `hcl:"env,optional"`
	Timeout   string         `hcl:"timeout,optional"`
}

// PipelineConfig represents the top-level structure of a pipeline definition,
// possibly merged from several files.
type PipelineConfig struct {
	Pipeline *Pipeline `hcl:"pipeline,block"`
	Steps    []*Step   `hcl:"step,block"`
	Body     hcl.Body  `hcl:",remain"`
}
