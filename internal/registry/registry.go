package registry

import (
	"context"
	"fmt"
	"log/slog"
)

// Module is the interface that all core modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Runtime carries the run-level facilities the engine hands to a step
// handler: the resolved working directory, the merged child environment, and
// a redactor that must be applied before logging anything derived from step
// inputs.
type Runtime struct {
	Workdir string
	Env     []string
	Redact  func(string) string
}

// RedactString applies the runtime's redactor, tolerating a nil redactor.
func (rt *Runtime) RedactString(s string) string {
	if rt == nil || rt.Redact == nil {
		return s
	}
	return rt.Redact(s)
}

// RegisteredStep holds the compiled Go parts of a step kind.
type RegisteredStep struct {
	// NewInput returns a fresh input struct for the converter to populate
	// from the step's arguments block.
	NewInput func() any
	// Run executes the step. The returned map is recorded as the step's
	// output in the run record.
	Run func(ctx context.Context, rt *Runtime, input any) (map[string]any, error)
}

// Registry holds the registered step handlers for a single application instance.
type Registry struct {
	Steps map[string]*RegisteredStep
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{Steps: make(map[string]*RegisteredStep)}
}

// RegisterStep registers a handler for a step kind. Registering the same kind
// twice is a programmer error.
func (r *Registry) RegisterStep(kind string, step *RegisteredStep) {
	if _, exists := r.Steps[kind]; exists {
		panic(fmt.Sprintf("step handler for kind '%s' already registered", kind))
	}
	slog.Debug("Registering step handler.", "kind", kind)
	r.Steps[kind] = step
}

// Lookup returns the handler for a step kind.
func (r *Registry) Lookup(kind string) (*RegisteredStep, bool) {
	step, ok := r.Steps[kind]
	return step, ok
}
