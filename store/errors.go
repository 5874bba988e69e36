package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mycok/uGraph/graph"
	"github.com/mycok/uGraph/operation"
	"github.com/mycok/uGraph/store/trait"
)

var (
	// ErrUnsupportedOperation is matched by every *UnsupportedOperationError.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrUnhandledOperation is matched by every *UnhandledOperationError.
	ErrUnhandledOperation = errors.New("unhandled operation")

	// ErrRejectedElements is matched by every *RejectedElementsError.
	ErrRejectedElements = errors.New("rejected elements")

	// ErrUnknownStoreType is returned by a FactoryRegistry asked to build a
	// store type it has no factory for.
	ErrUnknownStoreType = errors.New("unknown store type")

	// ErrUnexpectedInput is returned by handlers that receive a value of the
	// wrong type.
	ErrUnexpectedInput = errors.New("unexpected operation input")

	// ErrNilChain is returned when Execute is called without a chain.
	ErrNilChain = errors.New("nil operation chain")
)

// UnsupportedOperationError is returned when a store has a handler for an
// operation but cannot run it: the store lacks a required trait or the
// operation writes to a read-only store.
type UnsupportedOperationError struct {
	Kind          operation.Kind
	GraphID       string
	MissingTraits []trait.Trait
	ReadOnly      bool
}

func (e *UnsupportedOperationError) Error() string {
	var reason string
	switch {
	case e.ReadOnly:
		reason = "store is read-only"
	default:
		names := make([]string, 0, len(e.MissingTraits))
		for _, t := range e.MissingTraits {
			names = append(names, string(t))
		}

		reason = "missing traits [" + strings.Join(names, " ") + "]"
	}

	return fmt.Sprintf("graph %q: operation %s is unsupported: %s", e.GraphID, e.Kind, reason)
}

func (e *UnsupportedOperationError) Is(target error) bool { return target == ErrUnsupportedOperation }

// UnhandledOperationError is returned when no handler is registered for an
// operation kind and the store has no fallback handler.
type UnhandledOperationError struct {
	Kind    operation.Kind
	GraphID string
}

func (e *UnhandledOperationError) Error() string {
	return fmt.Sprintf("graph %q: no handler for operation %s", e.GraphID, e.Kind)
}

func (e *UnhandledOperationError) Is(target error) bool { return target == ErrUnhandledOperation }

// OperationError annotates a handler failure with the operation and graph
// that produced it.
type OperationError struct {
	Kind    operation.Kind
	Index   int
	GraphID string
	Err     error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("graph %q: operation %d (%s): %v", e.GraphID, e.Index, e.Kind, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// RejectedElement describes an element skipped by a handler.
type RejectedElement struct {
	Element graph.Element
	Err     error
}

// RejectedElementsError lists the elements skipped while running a chain in
// skip-on-error mode. It is returned together with the chain result, which
// remains valid.
type RejectedElementsError struct {
	GraphID  string
	Rejected []RejectedElement
}

func (e *RejectedElementsError) Error() string {
	return fmt.Sprintf("graph %q: %d element(s) rejected", e.GraphID, len(e.Rejected))
}

func (e *RejectedElementsError) Is(target error) bool { return target == ErrRejectedElements }
