/*
	graph package defines the element model shared by every store: entities,
	edges, their properties and the identifiers used to seed lookups.
*/

package graph

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Element is implemented by Entity and Edge.
type Element interface {
	// GetGroup returns the group the element belongs to.
	GetGroup() string

	// GetProperties returns the element properties. The returned map is
	// owned by the element.
	GetProperties() Properties

	// ID returns the identifier that can be used to look the element up.
	ID() ElementID

	// Clone returns a deep-copy of the element.
	Clone() Element

	element()
}

// Entity represents a vertex of the graph annotated with properties.
type Entity struct {
	Group      string
	Vertex     interface{}
	Properties Properties
}

// NewEntity returns an entity of the provided group.
func NewEntity(group string, vertex interface{}, props Properties) *Entity {
	if props == nil {
		props = Properties{}
	}

	return &Entity{Group: group, Vertex: vertex, Properties: props}
}

// GetGroup returns the group the entity belongs to.
func (e *Entity) GetGroup() string { return e.Group }

// GetProperties returns the entity properties.
func (e *Entity) GetProperties() Properties { return e.Properties }

// ID returns an EntityID for the entity vertex.
func (e *Entity) ID() ElementID { return EntityID{Vertex: e.Vertex} }

// Clone returns a deep-copy of the entity.
func (e *Entity) Clone() Element {
	return &Entity{
		Group:      e.Group,
		Vertex:     e.Vertex,
		Properties: e.Properties.Clone(),
	}
}

func (e *Entity) String() string {
	return fmt.Sprintf("Entity{group=%s vertex=%v properties=%v}", e.Group, e.Vertex, e.Properties)
}

func (*Entity) element() {}

// Edge represents a connection between a source and a destination vertex.
type Edge struct {
	Group       string
	Source      interface{}
	Destination interface{}
	Directed    bool
	Properties  Properties
}

// NewEdge returns an edge of the provided group.
func NewEdge(
	group string, src, dest interface{}, directed bool, props Properties,
) *Edge {

	if props == nil {
		props = Properties{}
	}

	return &Edge{
		Group:       group,
		Source:      src,
		Destination: dest,
		Directed:    directed,
		Properties:  props,
	}
}

// GetGroup returns the group the edge belongs to.
func (e *Edge) GetGroup() string { return e.Group }

// GetProperties returns the edge properties.
func (e *Edge) GetProperties() Properties { return e.Properties }

// ID returns an EdgeID for the edge end-points.
func (e *Edge) ID() ElementID {
	return EdgeID{Source: e.Source, Destination: e.Destination, Directed: e.Directed}
}

// Clone returns a deep-copy of the edge.
func (e *Edge) Clone() Element {
	return &Edge{
		Group:       e.Group,
		Source:      e.Source,
		Destination: e.Destination,
		Directed:    e.Directed,
		Properties:  e.Properties.Clone(),
	}
}

func (e *Edge) String() string {
	return fmt.Sprintf(
		"Edge{group=%s src=%v dest=%v directed=%t properties=%v}",
		e.Group, e.Source, e.Destination, e.Directed, e.Properties,
	)
}

func (*Edge) element() {}

// Properties maps a property name to its value.
type Properties map[string]interface{}

// Clone returns a copy of the properties. Mutable values ([]byte, StringSet)
// are copied as well.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}

	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}

	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case []byte:
		return append([]byte(nil), val...)
	case StringSet:
		return val.Clone()
	case time.Time, uuid.UUID:
		return val
	default:
		return v
	}
}
