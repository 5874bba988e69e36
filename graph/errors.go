package graph

import "errors"

var (
	// ErrNotFound is returned when an element lookup fails.
	ErrNotFound = errors.New("not found")

	// ErrIteratorClosed is returned by iterators that were closed before
	// being exhausted.
	ErrIteratorClosed = errors.New("iterator closed")
)
