package store

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mycok/uGraph/graph"
	"github.com/mycok/uGraph/operation"
)

// Access describes what a handler does to the backing store.
type Access uint8

// Handler access modes.
const (
	AccessRead Access = 1 << iota
	AccessWrite

	AccessReadWrite = AccessRead | AccessWrite
)

// Writes reports whether the access mode modifies the store.
func (a Access) Writes() bool { return a&AccessWrite != 0 }

// Handler runs one operation kind. The input is the output of the previous
// operation, or nil when the operation ignores its input. A handler owns its
// input and must close it when it is an iterator the handler does not return.
type Handler interface {
	Handle(ctx context.Context, op operation.Operation, input interface{}, ec *ExecContext) (interface{}, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, op operation.Operation, input interface{}, ec *ExecContext) (interface{}, error)

// Handle calls f(ctx, op, input, ec).
func (f HandlerFunc) Handle(
	ctx context.Context, op operation.Operation, input interface{}, ec *ExecContext,
) (interface{}, error) {
	return f(ctx, op, input, ec)
}

// Registration binds a handler to an operation kind.
type Registration struct {
	Kind    operation.Kind
	Access  Access
	Handler Handler
}

// ExecContext carries the state of a single chain execution.
type ExecContext struct {
	// ExecutionID uniquely identifies the execution in logs.
	ExecutionID string

	// GraphID of the store running the chain.
	GraphID string

	// User that submitted the chain.
	User User

	// Options of the chain being executed.
	Options map[string]string

	// Logger annotated with the execution id.
	Logger *logrus.Entry

	mu       sync.Mutex
	rejected []RejectedElement
}

// Reject records an element skipped by a handler running in skip-on-error
// mode.
func (ec *ExecContext) Reject(el graph.Element, err error) {
	ec.mu.Lock()
	ec.rejected = append(ec.rejected, RejectedElement{Element: el, Err: err})
	ec.mu.Unlock()

	ec.Logger.WithField("err", err).Debug("rejected element")
}

// Rejected returns the elements rejected so far.
func (ec *ExecContext) Rejected() []RejectedElement {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	return append([]RejectedElement(nil), ec.rejected...)
}
