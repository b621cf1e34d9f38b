package provider

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"lancer/internal/config"
)

// Factory builds a fuzzer from the run configuration.
type Factory func(cfg config.Config) (Fuzzer, error)

// Registry maps lowercase engine names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Names must be lowercase and unique.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" || name != strings.ToLower(name) {
		return errors.Errorf("provider name %q must be lowercase", name)
	}
	if _, ok := r.factories[name]; ok {
		return errors.Errorf("provider %s registered twice", name)
	}
	r.factories[name] = f
	return nil
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, errors.Errorf("unknown provider %q (known: %s)", name, strings.Join(r.Names(), ", "))
	}
	return f, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
