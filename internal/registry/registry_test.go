package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipewerk/pipewerk/internal/config"
)

func noopStep() *RegisteredStep {
	return &RegisteredStep{
		NewInput: func() any { return new(struct{}) },
		Run: func(context.Context, *Runtime, any) (map[string]any, error) {
			return nil, nil
		},
	}
}

func TestRegisterStep(t *testing.T) {
	r := New()
	r.RegisterStep("exec", noopStep())

	step, ok := r.Lookup("exec")
	require.True(t, ok)
	assert.NotNil(t, step)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestRegisterStep_DuplicatePanics(t *testing.T) {
	r := New()
	r.RegisterStep("exec", noopStep())
	assert.Panics(t, func() {
		r.RegisterStep("exec", noopStep())
	})
}

func TestValidateModel(t *testing.T) {
	r := New()
	r.RegisterStep("exec", noopStep())

	model := &config.Model{
		Pipeline: &config.Pipeline{Name: "test"},
		Steps: []*config.Step{
			{Kind: "exec", Name: "ok"},
		},
	}
	require.NoError(t, r.ValidateModel(model))

	model.Steps = append(model.Steps,
		&config.Step{Kind: "docker", Name: "one"},
		&config.Step{Kind: "ansible", Name: "two"},
		&config.Step{Kind: "docker", Name: "three"},
	)
	err := r.ValidateModel(model)
	require.Error(t, err)
	assert.ErrorContains(t, err, "unknown step kinds: ansible, docker")
}

func TestRuntimeRedactString(t *testing.T) {
	var nilRT *Runtime
	assert.Equal(t, "as-is", nilRT.RedactString("as-is"))

	rt := &Runtime{}
	assert.Equal(t, "as-is", rt.RedactString("as-is"))

	rt.Redact = func(string) string { return "***" }
	assert.Equal(t, "***", rt.RedactString("anything"))
}
