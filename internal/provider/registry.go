// Package provider resolves named backends from configuration.
//
// A Registry maps (category, name) pairs to factories. Registries are
// assembled once at the composition root and sealed by the first Resolve
// call; registering after that point is a programmer error. This keeps
// backend selection explicit: the same binary runs with null, local or
// remote implementations purely by config.
package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/codectx/codectx/pkg/types"
)

// Category groups providers by the contract they implement.
type Category string

const (
	CategoryEmbedding   Category = "embedding"
	CategoryVectorStore Category = "vector_store"
	CategoryCache       Category = "cache"
	CategoryLanguage    Category = "language"
	CategoryDatabase    Category = "database"
)

// Config carries the provider name plus backend-specific settings.
type Config struct {
	Provider string
	Settings map[string]any
}

// String fetches a string setting, empty when absent.
func (c Config) String(key string) string {
	if s, ok := c.Settings[key].(string); ok {
		return s
	}
	return ""
}

// Int fetches an integer setting, 0 when absent.
func (c Config) Int(key string) int {
	switch v := c.Settings[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Factory constructs a provider instance from its config.
type Factory func(cfg Config) (any, error)

// Info describes a registered provider for listings.
type Info struct {
	Name        string
	Description string
}

type entry struct {
	factory     Factory
	description string
}

// Registry is the name→factory table for all categories.
type Registry struct {
	mu        sync.Mutex
	factories map[Category]map[string]entry
	sealed    bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[Category]map[string]entry),
	}
}

// Register adds a factory under (category, name). Registering a pair
// twice, or registering after the first Resolve, panics: both are bugs
// in the composition root, not runtime conditions.
func (r *Registry) Register(category Category, name, description string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		panic(fmt.Sprintf("provider: Register(%s, %s) after first Resolve", category, name))
	}
	byName, ok := r.factories[category]
	if !ok {
		byName = make(map[string]entry)
		r.factories[category] = byName
	}
	if _, exists := byName[name]; exists {
		panic(fmt.Sprintf("provider: duplicate registration %s/%s", category, name))
	}
	byName[name] = entry{factory: factory, description: description}
}

// Resolve instantiates the provider named by cfg. The first call seals
// the registry against further registration.
func (r *Registry) Resolve(category Category, cfg Config) (any, error) {
	r.mu.Lock()
	r.sealed = true
	byName := r.factories[category]
	e, ok := byName[cfg.Provider]
	r.mu.Unlock()

	if cfg.Provider == "" {
		return nil, types.E(types.KindConfigInvalid, "provider name is empty").
			With("category", string(category))
	}
	if !ok {
		return nil, types.E(types.KindProviderUnknown, "no provider %q registered", cfg.Provider).
			With("category", string(category)).
			With("name", cfg.Provider)
	}

	instance, err := e.factory(cfg)
	if err != nil {
		return nil, types.Wrap(types.KindProviderInit, err, "initialize provider %q", cfg.Provider).
			With("category", string(category)).
			With("name", cfg.Provider)
	}
	return instance, nil
}

// List returns the registered providers for a category, sorted by name.
func (r *Registry) List(category Category) []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	byName := r.factories[category]
	infos := make([]Info, 0, len(byName))
	for name, e := range byName {
		infos = append(infos, Info{Name: name, Description: e.description})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// ResolveAs resolves and type-asserts in one step.
func ResolveAs[T any](r *Registry, category Category, cfg Config) (T, error) {
	var zero T
	instance, err := r.Resolve(category, cfg)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, types.E(types.KindProviderInit, "provider %q has unexpected type %T", cfg.Provider, instance).
			With("category", string(category))
	}
	return typed, nil
}
