package agent

import (
	"fmt"
	"sort"
	"sync"
)

// Factory constructs an agent for one run.
type Factory func(Env) (Agent, error)

// Registry maintains known agent factories keyed by node name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register installs an agent factory. Returns an error if the name already exists.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("agent: name is required")
	}
	if factory == nil {
		return fmt.Errorf("agent: factory is required for %s", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("agent: %s already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Resolve constructs an agent by name.
func (r *Registry) Resolve(name string, env Env) (Agent, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("agent: unknown name %s", name)
	}
	a, err := factory(env)
	if err != nil {
		return nil, err
	}
	if a.Name() != name {
		return nil, fmt.Errorf("agent: factory for %s built %q", name, a.Name())
	}
	return a, nil
}

// Names returns a sorted list of registered agent names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
