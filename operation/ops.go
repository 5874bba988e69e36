package operation

import (
	"fmt"

	"github.com/mycok/uGraph/bulk"
	"github.com/mycok/uGraph/codec"
	"github.com/mycok/uGraph/graph"
	"github.com/mycok/uGraph/schema"
	"github.com/mycok/uGraph/store/trait"
)

// Direction restricts the edges returned for a vertex seed.
type Direction uint8

// Supported directions.
const (
	DirectionEither Direction = iota
	DirectionOutgoing
	DirectionIncoming
)

// SeedMatching controls which elements are returned for a seed.
type SeedMatching uint8

// Supported seed matching modes.
const (
	// SeedRelated returns every element related to a seed: the entity and
	// its edges for a vertex seed, the edge and the entities of both
	// end-points for an edge seed.
	SeedRelated SeedMatching = iota

	// SeedEqual returns only elements whose identifier equals the seed.
	SeedEqual
)

var (
	_ Operation = (*AddElements)(nil)
	_ Operation = (*GetElements)(nil)
	_ Operation = (*GetAllElements)(nil)
	_ Operation = (*GetAdjacentIDs)(nil)
	_ Operation = (*Path)(nil)
	_ Operation = (*CountElements)(nil)
	_ Operation = (*Limit)(nil)
	_ Operation = (*Exists)(nil)
	_ Operation = (*GenerateSplitPoints)(nil)
	_ Operation = (*ExportRecords)(nil)
	_ Operation = (*AddGraph)(nil)
	_ Operation = (*RemoveGraph)(nil)
	_ Operation = (*GetAllGraphIDs)(nil)
)

// AddElements writes elements to a store. When Elements is empty the
// elements produced by the previous operation are written instead.
type AddElements struct {
	Elements []graph.Element

	// SkipInvalid rejects elements that fail conversion instead of aborting
	// the whole operation. Rejected elements are reported to the caller.
	SkipInvalid bool
}

func (*AddElements) Kind() Kind { return KindAddElements }

func (op *AddElements) InputType() IOType {
	if len(op.Elements) != 0 {
		return None
	}

	return Elements
}

func (*AddElements) OutputType() IOType { return None }

func (*AddElements) RequiredTraits() trait.Set { return trait.NewSet() }

// GetElements returns the elements related to a set of seeds. When Seeds is
// empty the ids produced by the previous operation are used instead.
type GetElements struct {
	Seeds        []graph.ElementID
	View         *View
	Direction    Direction
	SeedMatching SeedMatching
}

func (*GetElements) Kind() Kind { return KindGetElements }

func (op *GetElements) InputType() IOType {
	if len(op.Seeds) != 0 {
		return None
	}

	return ElementIDs
}

func (*GetElements) OutputType() IOType { return Elements }

func (op *GetElements) RequiredTraits() trait.Set { return op.View.RequiredTraits() }

func (op *GetElements) Validate() error { return op.View.Validate() }

// GetAllElements returns every element of a store.
type GetAllElements struct {
	View *View
}

func (*GetAllElements) Kind() Kind { return KindGetAllElements }

func (*GetAllElements) InputType() IOType { return None }

func (*GetAllElements) OutputType() IOType { return Elements }

func (op *GetAllElements) RequiredTraits() trait.Set { return op.View.RequiredTraits() }

func (op *GetAllElements) Validate() error { return op.View.Validate() }

// GetAdjacentIDs returns the ids of the vertices reachable over a single
// edge from the seeds. When Seeds is empty the ids produced by the previous
// operation are used instead.
type GetAdjacentIDs struct {
	Seeds     []graph.ElementID
	View      *View
	Direction Direction
}

func (*GetAdjacentIDs) Kind() Kind { return KindGetAdjacentIDs }

func (op *GetAdjacentIDs) InputType() IOType {
	if len(op.Seeds) != 0 {
		return None
	}

	return ElementIDs
}

func (*GetAdjacentIDs) OutputType() IOType { return ElementIDs }

func (op *GetAdjacentIDs) RequiredTraits() trait.Set { return op.View.RequiredTraits() }

func (op *GetAdjacentIDs) Validate() error { return op.View.Validate() }

// Path walks from Seeds across the edges selected by each hop in turn. Every
// hop but the last moves to the vertices adjacent to the current ones; the
// last hop returns the elements related to the vertices reached. Hops take
// their seeds from the previous hop. When Seeds is empty the ids produced by
// the previous operation are used instead.
type Path struct {
	Seeds []graph.ElementID
	Hops  []*GetElements
}

func (*Path) Kind() Kind { return KindPath }

func (op *Path) InputType() IOType {
	if len(op.Seeds) != 0 {
		return None
	}

	return ElementIDs
}

func (*Path) OutputType() IOType { return Elements }

func (op *Path) RequiredTraits() trait.Set {
	traits := trait.NewSet()
	for _, hop := range op.Hops {
		if hop != nil {
			traits = traits.Union(hop.RequiredTraits())
		}
	}

	return traits
}

func (op *Path) Validate() error {
	if len(op.Hops) == 0 {
		return fmt.Errorf("path: at least one hop is required")
	}

	for i, hop := range op.Hops {
		switch {
		case hop == nil:
			return fmt.Errorf("path: hop %d is nil", i)
		case len(hop.Seeds) != 0:
			return fmt.Errorf("path: hop %d lists seeds", i)
		}

		if err := hop.Validate(); err != nil {
			return fmt.Errorf("path: hop %d: %w", i, err)
		}
	}

	return nil
}

// CountElements counts the items produced by the previous operation.
type CountElements struct{}

func (*CountElements) Kind() Kind { return KindCount }

func (*CountElements) InputType() IOType { return ElementIDs }

func (*CountElements) OutputType() IOType { return Count }

func (*CountElements) RequiredTraits() trait.Set { return trait.NewSet() }

// Limit truncates the stream produced by the previous operation to N items.
// Its output has the type of its input.
type Limit struct {
	N int
}

func (*Limit) Kind() Kind { return KindLimit }

func (*Limit) InputType() IOType { return ElementIDs }

func (*Limit) OutputType() IOType { return ElementIDs }

func (*Limit) RequiredTraits() trait.Set { return trait.NewSet() }

func (op *Limit) Validate() error {
	if op.N < 0 {
		return fmt.Errorf("limit: N must not be negative, got %d", op.N)
	}

	return nil
}

func (*Limit) passthrough() {}

// Exists reports whether the previous operation produced at least one item.
type Exists struct{}

func (*Exists) Kind() Kind { return KindExists }

func (*Exists) InputType() IOType { return ElementIDs }

func (*Exists) OutputType() IOType { return Bool }

func (*Exists) RequiredTraits() trait.Set { return trait.NewSet() }

// GenerateSplitPoints samples the stored elements of Group and returns the
// split points that divide them into NumSplits partitions.
type GenerateSplitPoints struct {
	Group      string
	NumSplits  int
	SampleRate int
}

func (*GenerateSplitPoints) Kind() Kind { return KindGenerateSplitPoints }

func (*GenerateSplitPoints) InputType() IOType { return None }

func (*GenerateSplitPoints) OutputType() IOType { return SplitPoints }

func (*GenerateSplitPoints) RequiredTraits() trait.Set { return trait.NewSet(trait.Ordered) }

func (op *GenerateSplitPoints) Validate() error {
	if op.Group == "" {
		return fmt.Errorf("generate split points: group is required")
	} else if op.NumSplits < 1 || op.SampleRate < 1 {
		return fmt.Errorf("generate split points: number of splits and sample rate must be positive")
	}

	return nil
}

// ExportRecords encodes the elements produced by the previous operation and
// streams the resulting records to Sink, partitioned by Splits. It outputs
// the number of records written. ExportRecords cannot be serialised.
type ExportRecords struct {
	Splits      codec.SplitPoints
	Sink        bulk.RecordSink
	Workers     int
	SkipInvalid bool
}

func (*ExportRecords) Kind() Kind { return KindExportRecords }

func (*ExportRecords) InputType() IOType { return Elements }

func (*ExportRecords) OutputType() IOType { return Count }

func (*ExportRecords) RequiredTraits() trait.Set { return trait.NewSet() }

func (op *ExportRecords) Validate() error {
	if op.Sink == nil {
		return fmt.Errorf("export records: sink is required")
	}

	return nil
}

// AddGraph registers a graph with a federated store.
type AddGraph struct {
	GraphID            string
	Schema             *schema.Schema
	Properties         map[string]string
	ParentSchemaIDs    []string
	ParentPropertiesID string
	GraphAuths         []string
}

func (*AddGraph) Kind() Kind { return KindAddGraph }

func (*AddGraph) InputType() IOType { return None }

func (*AddGraph) OutputType() IOType { return None }

func (*AddGraph) RequiredTraits() trait.Set { return trait.NewSet() }

func (op *AddGraph) Validate() error {
	if op.GraphID == "" {
		return fmt.Errorf("add graph: graph id is required")
	} else if op.Schema == nil && len(op.ParentSchemaIDs) == 0 {
		return fmt.Errorf("add graph %q: schema is required", op.GraphID)
	}

	return nil
}

// RemoveGraph unregisters a graph from a federated store. It outputs true
// when the graph was removed.
type RemoveGraph struct {
	GraphID string
}

func (*RemoveGraph) Kind() Kind { return KindRemoveGraph }

func (*RemoveGraph) InputType() IOType { return None }

func (*RemoveGraph) OutputType() IOType { return Bool }

func (*RemoveGraph) RequiredTraits() trait.Set { return trait.NewSet() }

func (op *RemoveGraph) Validate() error {
	if op.GraphID == "" {
		return fmt.Errorf("remove graph: graph id is required")
	}

	return nil
}

// GetAllGraphIDs returns the ids of the graphs visible to the caller.
type GetAllGraphIDs struct{}

func (*GetAllGraphIDs) Kind() Kind { return KindGetAllGraphIDs }

func (*GetAllGraphIDs) InputType() IOType { return None }

func (*GetAllGraphIDs) OutputType() IOType { return GraphIDs }

func (*GetAllGraphIDs) RequiredTraits() trait.Set { return trait.NewSet() }
