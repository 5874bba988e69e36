package library

import (
	"fmt"
	"sync"

	"github.com/mycok/uGraph/schema"
	"github.com/mycok/uGraph/store"
)

// Static and compile-time check to ensure InMemoryLibrary implements
// Library interface.
var _ Library = (*InMemoryLibrary)(nil)

// InMemoryLibrary implements an in-memory library. It is safe for
// concurrent use.
type InMemoryLibrary struct {
	mu sync.RWMutex

	schemas    map[string]*schema.Schema
	properties map[string]store.Properties
}

// NewInMemoryLibrary returns an empty in-memory library.
func NewInMemoryLibrary() *InMemoryLibrary {
	return &InMemoryLibrary{
		schemas:    make(map[string]*schema.Schema),
		properties: make(map[string]store.Properties),
	}
}

// AddSchema stores a copy of sch under id.
func (l *InMemoryLibrary) AddSchema(id string, sch *schema.Schema) error {
	if sch == nil {
		return fmt.Errorf("library: nil schema for %q", id)
	}

	l.mu.Lock()
	l.schemas[id] = sch.Clone()
	l.mu.Unlock()

	return nil
}

// AddProperties stores a copy of props under id.
func (l *InMemoryLibrary) AddProperties(id string, props store.Properties) error {
	l.mu.Lock()
	l.properties[id] = props.Clone()
	l.mu.Unlock()

	return nil
}

// Schema returns a copy of the schema stored under id.
func (l *InMemoryLibrary) Schema(id string) (*schema.Schema, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	sch, ok := l.schemas[id]
	if !ok {
		return nil, fmt.Errorf("schema %q: %w", id, ErrNotFound)
	}

	return sch.Clone(), nil
}

// Properties returns a copy of the properties stored under id.
func (l *InMemoryLibrary) Properties(id string) (store.Properties, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	props, ok := l.properties[id]
	if !ok {
		return nil, fmt.Errorf("properties %q: %w", id, ErrNotFound)
	}

	return props.Clone(), nil
}

// Remove deletes every entry stored under id.
func (l *InMemoryLibrary) Remove(id string) error {
	l.mu.Lock()
	delete(l.schemas, id)
	delete(l.properties, id)
	l.mu.Unlock()

	return nil
}

// Close is a no-op.
func (l *InMemoryLibrary) Close() error { return nil }
