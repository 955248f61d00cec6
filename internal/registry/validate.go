package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pipewerk/pipewerk/internal/config"
)

// ValidateModel checks that every step kind used by the model has a
// registered handler, so unknown kinds fail at startup rather than mid-run.
func (r *Registry) ValidateModel(model *config.Model) error {
	missing := make(map[string]bool)
	for _, step := range model.Steps {
		if _, ok := r.Steps[step.Kind]; !ok {
			missing[step.Kind] = true
		}
	}
	if len(missing) == 0 {
		return nil
	}

	kinds := make([]string, 0, len(missing))
	for kind := range missing {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return fmt.Errorf("pipeline %q uses unknown step kinds: %s", model.Pipeline.Name, strings.Join(kinds, ", "))
}
