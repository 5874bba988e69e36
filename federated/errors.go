package federated

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mycok/uGraph/operation"
	"github.com/mycok/uGraph/store"
)

var (
	// ErrGraphAlreadyExists is matched by every GraphAlreadyExistsError.
	ErrGraphAlreadyExists = errors.New("graph already exists")

	// ErrUnknownParent is matched by every UnknownParentError.
	ErrUnknownParent = errors.New("unknown parent")

	// ErrAuthorization is matched by every AuthorizationError.
	ErrAuthorization = errors.New("not authorised")

	// ErrUnknownGraph is matched by every UnknownGraphError.
	ErrUnknownGraph = errors.New("unknown graph")

	// ErrPartialFailure is matched by every PartialFailureError.
	ErrPartialFailure = errors.New("some graphs failed")

	// ErrMixedChain is matched by every MixedChainError.
	ErrMixedChain = errors.New("graph management operations cannot be chained with data operations")
)

// GraphAlreadyExistsError is returned when adding a graph whose id is
// registered or being registered.
type GraphAlreadyExistsError struct {
	GraphID string
}

func (e *GraphAlreadyExistsError) Error() string {
	return fmt.Sprintf("graph %q: %s", e.GraphID, ErrGraphAlreadyExists)
}

// Is allows errors.Is(err, ErrGraphAlreadyExists) to match.
func (e *GraphAlreadyExistsError) Is(target error) bool { return target == ErrGraphAlreadyExists }

// UnknownParentError is returned when a graph references a parent schema or
// properties id that is not in the library.
type UnknownParentError struct {
	GraphID  string
	ParentID string
}

func (e *UnknownParentError) Error() string {
	return fmt.Sprintf("graph %q: %s %q", e.GraphID, ErrUnknownParent, e.ParentID)
}

// Is allows errors.Is(err, ErrUnknownParent) to match.
func (e *UnknownParentError) Is(target error) bool { return target == ErrUnknownParent }

// AuthorizationError is returned when the caller lacks the auths of the
// graphs it addressed.
type AuthorizationError struct {
	UserID   string
	GraphIDs []string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("user %q: %s for graphs [%s]", e.UserID, ErrAuthorization, strings.Join(e.GraphIDs, ", "))
}

// Is allows errors.Is(err, ErrAuthorization) to match.
func (e *AuthorizationError) Is(target error) bool { return target == ErrAuthorization }

// UnknownGraphError is returned when a graph id is not registered.
type UnknownGraphError struct {
	GraphID string
}

func (e *UnknownGraphError) Error() string {
	return fmt.Sprintf("graph %q: %s", e.GraphID, ErrUnknownGraph)
}

// Is allows errors.Is(err, ErrUnknownGraph) to match.
func (e *UnknownGraphError) Is(target error) bool { return target == ErrUnknownGraph }

// MixedChainError is returned, before anything runs, for chains holding
// both graph management and data operations.
type MixedChainError struct {
	Kind operation.Kind
}

func (e *MixedChainError) Error() string {
	return fmt.Sprintf("operation %s: %s", e.Kind, ErrMixedChain)
}

// Is allows errors.Is(err, ErrMixedChain) to match.
func (e *MixedChainError) Is(target error) bool { return target == ErrMixedChain }

// GraphFailure records the failure of a single delegate.
type GraphFailure struct {
	GraphID string
	Err     error
}

// PartialFailureError is returned by best-effort executions in which some
// delegates failed. Result holds the merged output of the others and
// Rejected the elements they skipped.
type PartialFailureError struct {
	Result   interface{}
	Failures []GraphFailure
	Rejected []store.RejectedElement
}

func (e *PartialFailureError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.GraphID, f.Err))
	}

	return fmt.Sprintf("%s: %s", ErrPartialFailure, strings.Join(parts, "; "))
}

// Is allows errors.Is(err, ErrPartialFailure) to match.
func (e *PartialFailureError) Is(target error) bool { return target == ErrPartialFailure }
