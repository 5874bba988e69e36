package operation

import (
	"errors"
	"fmt"
)

var (
	// ErrChainType is matched by every ChainTypeError.
	ErrChainType = errors.New("chain type mismatch")

	// ErrEmptyChain is returned when building a chain without operations.
	ErrEmptyChain = errors.New("chain has no operations")

	// ErrNilOperation is returned when a chain contains a nil operation.
	ErrNilOperation = errors.New("nil operation")

	// ErrInvalidOperation is matched by every InvalidOperationError.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrUnknownKind is returned when decoding an operation whose kind is
	// not allowed on the wire.
	ErrUnknownKind = errors.New("unknown operation kind")

	// ErrNotSerialisable is returned when encoding an operation that cannot
	// be sent over the wire.
	ErrNotSerialisable = errors.New("operation cannot be serialised")
)

// ChainTypeError is returned when the output of an operation cannot be used
// as the input of the next.
type ChainTypeError struct {
	Index  int
	Kind   Kind
	Output IOType
	Input  IOType
}

func (e *ChainTypeError) Error() string {
	return fmt.Sprintf(
		"%s: operation %d (%s) expects %s but receives %s",
		ErrChainType, e.Index, e.Kind, e.Input, e.Output,
	)
}

// Is allows errors.Is(err, ErrChainType) to match.
func (e *ChainTypeError) Is(target error) bool { return target == ErrChainType }

// InvalidOperationError is returned when an operation fails its own
// validation.
type InvalidOperationError struct {
	Index int
	Kind  Kind
	Err   error
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("%s: operation %d (%s): %v", ErrInvalidOperation, e.Index, e.Kind, e.Err)
}

// Is allows errors.Is(err, ErrInvalidOperation) to match.
func (e *InvalidOperationError) Is(target error) bool { return target == ErrInvalidOperation }

// Unwrap returns the validation failure.
func (e *InvalidOperationError) Unwrap() error { return e.Err }
