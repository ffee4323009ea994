package registry

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/vk/p4dbgen/internal/workload"
)

// Module is the interface that all workload modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds the registered generators for a single application instance.
type Registry struct {
	WorkloadRegistry map[string]workload.Generator
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		WorkloadRegistry: make(map[string]workload.Generator),
	}
}

// RegisterWorkload registers a generator under its name.
func (r *Registry) RegisterWorkload(g workload.Generator) {
	name := g.Name()
	if _, exists := r.WorkloadRegistry[name]; exists {
		panic(fmt.Sprintf("workload with name '%s' already registered", name))
	}
	slog.Debug("Registering workload.", "name", name)
	r.WorkloadRegistry[name] = g
}

// Workload returns the generator registered under name.
func (r *Registry) Workload(name string) (workload.Generator, error) {
	g, ok := r.WorkloadRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown workload '%s' (available: %v)", name, r.Names())
	}
	return g, nil
}

// Names returns the registered workload names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.WorkloadRegistry))
	for name := range r.WorkloadRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
