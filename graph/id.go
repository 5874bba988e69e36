package graph

import "fmt"

// ElementID identifies an entity vertex or an edge and is used to seed
// lookups.
type ElementID interface {
	elementID()
}

// EntityID seeds a lookup by a single vertex.
type EntityID struct {
	Vertex interface{}
}

func (id EntityID) String() string { return fmt.Sprintf("EntityID{%v}", id.Vertex) }

func (EntityID) elementID() {}

// EdgeID seeds a lookup by an edge's end-points.
type EdgeID struct {
	Source      interface{}
	Destination interface{}
	Directed    bool
}

func (id EdgeID) String() string {
	return fmt.Sprintf("EdgeID{%v->%v directed=%t}", id.Source, id.Destination, id.Directed)
}

func (EdgeID) elementID() {}
