/*
	operation package describes the units of work a store executes and the
	chains that compose them. Operations are plain data: every store resolves
	the handler that runs an operation from its Kind.
*/

package operation

import (
	"fmt"

	"github.com/mycok/uGraph/store/trait"
)

// IOType describes the value an operation consumes or produces.
type IOType uint8

// Supported IO types.
const (
	// None is consumed by operations that ignore their input and produced by
	// operations that return nothing.
	None IOType = iota

	// Elements is a graph.ElementIterator.
	Elements

	// ElementIDs is a graph.ElementIDIterator.
	ElementIDs

	// Count is an int64.
	Count

	// Bool is a bool.
	Bool

	// SplitPoints is a codec.SplitPoints.
	SplitPoints

	// GraphIDs is a []string.
	GraphIDs
)

var ioTypeNames = map[IOType]string{
	None:        "None",
	Elements:    "Elements",
	ElementIDs:  "ElementIDs",
	Count:       "Count",
	Bool:        "Bool",
	SplitPoints: "SplitPoints",
	GraphIDs:    "GraphIDs",
}

func (t IOType) String() string {
	if name, ok := ioTypeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("IOType(%d)", uint8(t))
}

// AssignableTo reports whether a value of type t can be used as an input
// of type in. Any output can feed an operation that ignores its input and
// element streams can be used wherever id streams are expected.
func (t IOType) AssignableTo(in IOType) bool {
	switch {
	case in == None:
		return true
	case t == in:
		return true
	default:
		return t == Elements && in == ElementIDs
	}
}

// Kind identifies an operation and selects the handler that runs it.
type Kind string

// Supported operation kinds.
const (
	KindAddElements         Kind = "AddElements"
	KindGetElements         Kind = "GetElements"
	KindGetAllElements      Kind = "GetAllElements"
	KindGetAdjacentIDs      Kind = "GetAdjacentIDs"
	KindPath                Kind = "Path"
	KindCount               Kind = "Count"
	KindLimit               Kind = "Limit"
	KindExists              Kind = "Exists"
	KindGenerateSplitPoints Kind = "GenerateSplitPoints"
	KindExportRecords       Kind = "ExportRecords"
	KindAddGraph            Kind = "AddGraph"
	KindRemoveGraph         Kind = "RemoveGraph"
	KindGetAllGraphIDs      Kind = "GetAllGraphIDs"
)

// Operation is implemented by every operation type.
type Operation interface {
	// Kind returns the operation kind.
	Kind() Kind

	// InputType returns the type of input the operation consumes.
	InputType() IOType

	// OutputType returns the type of value the operation produces.
	OutputType() IOType

	// RequiredTraits returns the store traits needed to run the operation.
	RequiredTraits() trait.Set
}

// Validator is implemented by operations that can check their own fields.
type Validator interface {
	Validate() error
}

// passthrough is implemented by operations whose output type is the type of
// the value they receive.
type passthrough interface {
	passthrough()
}

// IsAdmin reports whether op manages the graphs of a federated store rather
// than their contents.
func IsAdmin(op Operation) bool {
	switch op.Kind() {
	case KindAddGraph, KindRemoveGraph, KindGetAllGraphIDs:
		return true
	default:
		return false
	}
}
