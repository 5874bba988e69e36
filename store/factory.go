package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mycok/uGraph/schema"
)

// Factory builds an executor for a graph from its schema and properties.
type Factory interface {
	New(graphID string, sch *schema.Schema, props Properties) (Executor, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(graphID string, sch *schema.Schema, props Properties) (Executor, error)

// New calls f(graphID, sch, props).
func (f FactoryFunc) New(graphID string, sch *schema.Schema, props Properties) (Executor, error) {
	return f(graphID, sch, props)
}

// FactoryRegistry maps store types to the factories that build them.
type FactoryRegistry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewFactoryRegistry returns an empty registry.
func NewFactoryRegistry() *FactoryRegistry {
	return &FactoryRegistry{factories: make(map[string]Factory)}
}

// Register binds storeType to f, replacing any previous binding.
func (r *FactoryRegistry) Register(storeType string, f Factory) {
	r.mu.Lock()
	r.factories[storeType] = f
	r.mu.Unlock()
}

// Types returns the registered store types in ascending order.
func (r *FactoryRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}

	sort.Strings(out)

	return out
}

// Build creates an executor using the factory selected by the
// PropStoreType property.
func (r *FactoryRegistry) Build(graphID string, sch *schema.Schema, props Properties) (Executor, error) {
	storeType := props.Get(PropStoreType, "")

	r.mu.RLock()
	f, ok := r.factories[storeType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("graph %q: %w %q", graphID, ErrUnknownStoreType, storeType)
	}

	return f.New(graphID, sch, props)
}
