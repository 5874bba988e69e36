package codec

import (
	"errors"
	"fmt"
)

// ErrElementConversion is matched by every ConversionError.
var ErrElementConversion = errors.New("element conversion failed")

// ConversionError is returned when an element cannot be encoded or a record
// cannot be decoded. The element is rejected as a whole.
type ConversionError struct {
	Reason string
	Err    error
}

func conversionErrorf(err error, format string, args ...interface{}) *ConversionError {
	return &ConversionError{Reason: fmt.Sprintf(format, args...), Err: err}
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrElementConversion, e.Reason, e.Err)
	}

	return fmt.Sprintf("%s: %s", ErrElementConversion, e.Reason)
}

// Is allows errors.Is(err, ErrElementConversion) to match.
func (e *ConversionError) Is(target error) bool { return target == ErrElementConversion }

// Unwrap returns the underlying cause, if any.
func (e *ConversionError) Unwrap() error { return e.Err }
