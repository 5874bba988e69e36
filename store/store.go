/*
	store package binds a schema and a set of properties to the handlers that
	run operations against one backing store. A Store advertises a fixed set
	of traits at construction and dispatches every operation of a chain to the
	handler registered for its kind.
*/

package store

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/mycok/uGraph/graph"
	"github.com/mycok/uGraph/metrics"
	"github.com/mycok/uGraph/operation"
	"github.com/mycok/uGraph/schema"
	"github.com/mycok/uGraph/store/trait"
)

// Static and compile-time check to ensure Store implements Executor.
var _ Executor = (*Store)(nil)

// Executor is implemented by anything that runs operation chains against a
// graph: stores, federated stores and remote clients.
type Executor interface {
	// GraphID returns the id of the graph served by the executor.
	GraphID() string

	// Schema returns the schema of the graph.
	Schema() *schema.Schema

	// Traits returns the traits advertised by the executor.
	Traits() trait.Set

	// Execute runs chain on behalf of user and returns the output of its
	// last operation.
	Execute(ctx context.Context, chain *operation.Chain, user User) (interface{}, error)
}

// Operations every store must be able to run.
var requiredKinds = []operation.Kind{
	operation.KindAddElements,
	operation.KindGetElements,
	operation.KindGetAllElements,
}

// Config defines the settings of a Store.
type Config struct {
	// Id of the graph served by the store.
	GraphID string

	// Schema of the graph. It is validated and copied by New.
	Schema *schema.Schema

	// Properties the store was built from.
	Properties Properties

	// Traits advertised by the store.
	Traits trait.Set

	// Backend specific handlers. The generic Count, Limit, Exists and Path
	// handlers are registered unless overridden here. Path runs on the
	// GetAdjacentIDs and GetElements handlers of the store.
	Handlers []Registration

	// Fallback runs operations that have no registered handler. If not
	// specified such operations fail with an UnhandledOperationError.
	Fallback Handler

	// Closer releases the backing store when the Store is closed.
	Closer io.Closer

	// Metrics collector. If not specified no metrics are recorded.
	Metrics *metrics.Store

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error

	if cfg.GraphID == "" {
		err = multierror.Append(err, fmt.Errorf("graph id not provided"))
	}

	if cfg.Schema == nil {
		err = multierror.Append(err, fmt.Errorf("schema not provided"))
	} else if schemaErr := cfg.Schema.Validate(); schemaErr != nil {
		err = multierror.Append(err, schemaErr)
	}

	registered := make(map[operation.Kind]bool)
	for _, reg := range cfg.Handlers {
		if reg.Handler == nil {
			err = multierror.Append(err, fmt.Errorf("nil handler for operation %s", reg.Kind))
		}

		registered[reg.Kind] = true
	}

	for _, kind := range requiredKinds {
		if !registered[kind] {
			err = multierror.Append(err, fmt.Errorf("no handler for required operation %s", kind))
		}
	}

	if cfg.Properties == nil {
		cfg.Properties = make(Properties)
	}

	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}

// Store runs operation chains by dispatching each operation to the handler
// registered for its kind.
type Store struct {
	cfg      Config
	schema   *schema.Schema
	readOnly bool
	handlers map[operation.Kind]Registration
}

// New validates cfg and returns a Store. An invalid schema fails with an
// error matching schema.ErrInvalidSchema.
func New(cfg Config) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("store: config validation failed: %w", err)
	}

	readOnly, err := cfg.Properties.Bool(PropReadOnly)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	s := &Store{
		cfg:      cfg,
		schema:   cfg.Schema.Clone(),
		readOnly: readOnly,
		handlers: make(map[operation.Kind]Registration),
	}

	for _, reg := range genericHandlers() {
		s.handlers[reg.Kind] = reg
	}

	s.handlers[operation.KindPath] = Registration{
		Kind:    operation.KindPath,
		Access:  AccessRead,
		Handler: HandlerFunc(s.handlePath),
	}

	for _, reg := range cfg.Handlers {
		s.handlers[reg.Kind] = reg
	}

	return s, nil
}

// GraphID returns the id of the graph served by the store.
func (s *Store) GraphID() string { return s.cfg.GraphID }

// Schema returns the schema of the store.
func (s *Store) Schema() *schema.Schema { return s.schema }

// Traits returns the traits advertised by the store.
func (s *Store) Traits() trait.Set { return s.cfg.Traits }

// Properties returns a copy of the store properties.
func (s *Store) Properties() Properties { return s.cfg.Properties.Clone() }

// ReadOnly reports whether write operations are disabled.
func (s *Store) ReadOnly() bool { return s.readOnly }

// Close releases the backing store.
func (s *Store) Close() error {
	if s.cfg.Closer == nil {
		return nil
	}

	return s.cfg.Closer.Close()
}

// Execute runs the operations of chain in order, feeding the output of each
// operation to the next one, and returns the output of the last operation.
// Handlers are resolved for every operation before any of them runs. If an
// operation fails the chain is aborted and any pending output is closed.
//
// When elements were skipped by handlers in skip-on-error mode the result
// is returned together with a *RejectedElementsError.
func (s *Store) Execute(ctx context.Context, chain *operation.Chain, user User) (interface{}, error) {
	if chain == nil {
		return nil, ErrNilChain
	}

	ops := chain.Operations()
	handlers := make([]Handler, len(ops))
	for i, op := range ops {
		h, err := s.resolve(op)
		if err != nil {
			return nil, err
		}

		handlers[i] = h
	}

	execID := uuid.New().String()
	ec := &ExecContext{
		ExecutionID: execID,
		GraphID:     s.cfg.GraphID,
		User:        user,
		Options:     chain.Options(),
		Logger: s.cfg.Logger.WithFields(logrus.Fields{
			"graph_id":     s.cfg.GraphID,
			"execution_id": execID,
			"user":         user.ID,
		}),
	}

	var result interface{}
	for i, op := range ops {
		input := result
		if op.InputType() == operation.None {
			closeValue(input)
			input = nil
		}

		out, err := handlers[i].Handle(ctx, op, input, ec)
		s.cfg.Metrics.ObserveOperation(s.cfg.GraphID, string(op.Kind()), err)
		if err != nil {
			closeValue(input)
			ec.Logger.WithFields(logrus.Fields{
				"operation": op.Kind(),
				"err":       err,
			}).Debug("operation failed")

			return nil, &OperationError{Kind: op.Kind(), Index: i, GraphID: s.cfg.GraphID, Err: err}
		}

		result = out
	}

	if rejected := ec.Rejected(); len(rejected) != 0 {
		return result, &RejectedElementsError{GraphID: s.cfg.GraphID, Rejected: rejected}
	}

	return result, nil
}

func (s *Store) resolve(op operation.Operation) (Handler, error) {
	reg, ok := s.handlers[op.Kind()]
	if !ok {
		if s.cfg.Fallback == nil {
			return nil, &UnhandledOperationError{Kind: op.Kind(), GraphID: s.cfg.GraphID}
		}

		return s.cfg.Fallback, nil
	}

	if s.readOnly && reg.Access.Writes() {
		return nil, &UnsupportedOperationError{Kind: op.Kind(), GraphID: s.cfg.GraphID, ReadOnly: true}
	}

	if missing := s.cfg.Traits.Missing(op.RequiredTraits()); len(missing) != 0 {
		return nil, &UnsupportedOperationError{Kind: op.Kind(), GraphID: s.cfg.GraphID, MissingTraits: missing}
	}

	return reg.Handler, nil
}

// closeValue closes v when it is an iterator.
func closeValue(v interface{}) {
	if it, ok := v.(graph.Iterator); ok {
		_ = it.Close()
	}
}
