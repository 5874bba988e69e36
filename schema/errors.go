package schema

import (
	"errors"

	"github.com/hashicorp/go-multierror"
)

// ErrInvalidSchema is matched by every ValidationError.
var ErrInvalidSchema = errors.New("invalid schema")

// ValidationError lists every problem found while validating a schema.
type ValidationError struct {
	Problems *multierror.Error
}

func (e *ValidationError) Error() string {
	return ErrInvalidSchema.Error() + ": " + e.Problems.Error()
}

// Is allows errors.Is(err, ErrInvalidSchema) to match any ValidationError.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidSchema }

// Unwrap returns the accumulated problems.
func (e *ValidationError) Unwrap() error { return e.Problems }
