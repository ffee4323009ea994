package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/p4dbgen/internal/ctxlog"
)

// ValidateRegistry checks that every registered generator accepts its own
// defaults, so the parameterless invocation of each workload always works.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for _, name := range r.Names() {
		g := r.WorkloadRegistry[name]
		if err := g.Validate(g.Defaults()); err != nil {
			errs = append(errs, fmt.Sprintf("workload '%s': defaults rejected: %v", name, err))
			continue
		}
		logger.Debug("Workload defaults validated.", "workload", name, "defaults", fmt.Sprintf("%+v", g.Defaults()))
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
