/*
	federated package implements a store that registers independently schemed
	delegate graphs and fans operation chains out to a selection of them,
	merging their results.
*/

package federated

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/mycok/uGraph/federated/library"
	"github.com/mycok/uGraph/metrics"
	"github.com/mycok/uGraph/operation"
	"github.com/mycok/uGraph/schema"
	"github.com/mycok/uGraph/store"
	"github.com/mycok/uGraph/store/trait"
)

// Static and compile-time check to ensure Store implements store.Executor
// interface.
var _ store.Executor = (*Store)(nil)

// Config defines the settings of a federated store.
type Config struct {
	// Id of the federated store.
	GraphID string

	// Factories used to build the delegate of every added graph.
	Factories *store.FactoryRegistry

	// Library holding the schemas and properties graphs can inherit. If not
	// specified an in-memory library will be used instead.
	Library library.Library

	// A clock instance for timestamping registrations. If not specified,
	// the default wall-clock will be used instead.
	Clock clock.Clock

	// Registerer for the federation metrics. If not specified metrics are
	// collected without being registered.
	Registerer prometheus.Registerer

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error

	if cfg.GraphID == "" {
		err = multierror.Append(err, fmt.Errorf("graph id not provided"))
	}

	if cfg.Factories == nil {
		err = multierror.Append(err, fmt.Errorf("store factories not provided"))
	}

	if cfg.Library == nil {
		cfg.Library = library.NewInMemoryLibrary()
	}

	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}

	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}

// Registration describes a graph added to the federated store.
type Registration struct {
	GraphID            string
	Schema             *schema.Schema
	Properties         store.Properties
	ParentSchemaIDs    []string
	ParentPropertiesID string
	GraphAuths         []string
	CreatedBy          string
	CreatedAt          time.Time
}

type graphEntry struct {
	reg Registration
	ex  store.Executor
}

// Store is a federated store. It is safe for concurrent use.
type Store struct {
	cfg     Config
	metrics *metrics.Federated

	mu       sync.RWMutex
	graphs   map[string]*graphEntry
	reserved map[string]struct{}
}

// New returns a federated store without any graph.
func New(cfg Config) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("federated store: config validation failed: %w", err)
	}

	m, err := metrics.NewFederated(cfg.Registerer)
	if err != nil {
		return nil, fmt.Errorf("federated store: %w", err)
	}

	return &Store{
		cfg:      cfg,
		metrics:  m,
		graphs:   make(map[string]*graphEntry),
		reserved: make(map[string]struct{}),
	}, nil
}

// GraphID returns the id of the federated store.
func (s *Store) GraphID() string { return s.cfg.GraphID }

// Schema returns the merge of the schemas of every graph in id order.
func (s *Store) Schema() *schema.Schema {
	s.mu.RLock()
	defer s.mu.RUnlock()

	schemas := make([]*schema.Schema, 0, len(s.graphs))
	for _, e := range s.sortedEntries() {
		schemas = append(schemas, e.reg.Schema)
	}

	return schema.Merge(schemas...)
}

// Traits returns the traits shared by every graph. A store without graphs
// has none.
func (s *Store) Traits() trait.Set {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.sortedEntries()
	if len(entries) == 0 {
		return trait.NewSet()
	}

	out := entries[0].ex.Traits()
	for _, e := range entries[1:] {
		out = out.Intersect(e.ex.Traits())
	}

	return out
}

// Registration returns the registration of a graph.
func (s *Store) Registration(graphID string) (Registration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.graphs[graphID]
	if !ok {
		return Registration{}, false
	}

	return e.reg, true
}

// AddGraph registers a graph. The schema of the graph is the supplied schema
// merged with the parent schemas in order. Its properties are those of the
// parent properties overridden by the supplied ones.
func (s *Store) AddGraph(op *operation.AddGraph, user store.User) error {
	if err := op.Validate(); err != nil {
		return err
	}

	schemas := []*schema.Schema{op.Schema}
	for _, parent := range op.ParentSchemaIDs {
		sch, err := s.cfg.Library.Schema(parent)
		if errors.Is(err, library.ErrNotFound) {
			return &UnknownParentError{GraphID: op.GraphID, ParentID: parent}
		} else if err != nil {
			return fmt.Errorf("add graph %q: %w", op.GraphID, err)
		}

		schemas = append(schemas, sch)
	}

	sch := schema.Merge(schemas...)
	if err := sch.Validate(); err != nil {
		return fmt.Errorf("add graph %q: %w", op.GraphID, err)
	}

	props := store.Properties{}
	if op.ParentPropertiesID != "" {
		parent, err := s.cfg.Library.Properties(op.ParentPropertiesID)
		if errors.Is(err, library.ErrNotFound) {
			return &UnknownParentError{GraphID: op.GraphID, ParentID: op.ParentPropertiesID}
		} else if err != nil {
			return fmt.Errorf("add graph %q: %w", op.GraphID, err)
		}

		props = parent
	}

	props = store.MergeProperties(props, op.Properties)

	if err := s.reserve(op.GraphID); err != nil {
		return err
	}

	ex, err := s.register(op, sch, props, user)
	if err != nil {
		s.release(op.GraphID)

		return err
	}

	s.cfg.Logger.WithFields(logrus.Fields{
		"graph_id": op.GraphID,
		"user":     user.ID,
		"traits":   ex.Traits().String(),
	}).Info("graph added")

	return nil
}

// reserve claims graphID so that concurrent registrations of the same id
// fail.
func (s *Store) reserve(graphID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.graphs[graphID]; exists {
		return &GraphAlreadyExistsError{GraphID: graphID}
	} else if _, pending := s.reserved[graphID]; pending {
		return &GraphAlreadyExistsError{GraphID: graphID}
	}

	s.reserved[graphID] = struct{}{}

	return nil
}

func (s *Store) release(graphID string) {
	s.mu.Lock()
	delete(s.reserved, graphID)
	s.mu.Unlock()
}

func (s *Store) register(
	op *operation.AddGraph, sch *schema.Schema, props store.Properties, user store.User,
) (store.Executor, error) {

	ex, err := s.cfg.Factories.Build(op.GraphID, sch, props)
	if err != nil {
		return nil, fmt.Errorf("add graph %q: %w", op.GraphID, err)
	}

	if err = s.cfg.Library.AddSchema(op.GraphID, sch); err == nil {
		err = s.cfg.Library.AddProperties(op.GraphID, props)
	}

	if err != nil {
		closeExecutor(ex)
		_ = s.cfg.Library.Remove(op.GraphID)

		return nil, fmt.Errorf("add graph %q: %w", op.GraphID, err)
	}

	entry := &graphEntry{
		ex: ex,
		reg: Registration{
			GraphID:            op.GraphID,
			Schema:             sch,
			Properties:         props,
			ParentSchemaIDs:    append([]string(nil), op.ParentSchemaIDs...),
			ParentPropertiesID: op.ParentPropertiesID,
			GraphAuths:         append([]string(nil), op.GraphAuths...),
			CreatedBy:          user.ID,
			CreatedAt:          s.cfg.Clock.Now(),
		},
	}

	s.mu.Lock()
	delete(s.reserved, op.GraphID)
	s.graphs[op.GraphID] = entry
	n := len(s.graphs)
	s.mu.Unlock()

	s.metrics.SetGraphs(n)

	return ex, nil
}

// RemoveGraph unregisters a graph and closes its delegate. Only users
// holding one of the graph auths may remove it.
func (s *Store) RemoveGraph(graphID string, user store.User) error {
	s.mu.Lock()
	e, ok := s.graphs[graphID]
	if !ok {
		s.mu.Unlock()

		return &UnknownGraphError{GraphID: graphID}
	} else if !user.HasAnyAuth(e.reg.GraphAuths...) {
		s.mu.Unlock()

		return &AuthorizationError{UserID: user.ID, GraphIDs: []string{graphID}}
	}

	delete(s.graphs, graphID)
	n := len(s.graphs)
	s.mu.Unlock()

	s.metrics.SetGraphs(n)
	closeExecutor(e.ex)

	if err := s.cfg.Library.Remove(graphID); err != nil {
		return fmt.Errorf("remove graph %q: %w", graphID, err)
	}

	s.cfg.Logger.WithFields(logrus.Fields{"graph_id": graphID, "user": user.ID}).Info("graph removed")

	return nil
}

// GraphIDs returns, in ascending order, the ids of the graphs user may
// access.
func (s *Store) GraphIDs(user store.User) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, e := range s.sortedEntries() {
		if user.HasAnyAuth(e.reg.GraphAuths...) {
			ids = append(ids, e.reg.GraphID)
		}
	}

	return ids
}

// Close removes every graph and closes the delegates and the library.
func (s *Store) Close() error {
	s.mu.Lock()
	entries := s.sortedEntries()
	s.graphs = make(map[string]*graphEntry)
	s.mu.Unlock()

	var err error
	for _, e := range entries {
		if c, ok := e.ex.(io.Closer); ok {
			if cErr := c.Close(); cErr != nil {
				err = multierror.Append(err, fmt.Errorf("graph %q: %w", e.reg.GraphID, cErr))
			}
		}
	}

	if lErr := s.cfg.Library.Close(); lErr != nil {
		err = multierror.Append(err, lErr)
	}

	return err
}

// sortedEntries returns the registered graphs in id order. The caller must
// hold the lock.
func (s *Store) sortedEntries() []*graphEntry {
	out := make([]*graphEntry, 0, len(s.graphs))
	for _, e := range s.graphs {
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].reg.GraphID < out[j].reg.GraphID })

	return out
}

// executeAdmin runs a chain of graph management operations locally. The
// whole chain is checked before the first operation runs.
func (s *Store) executeAdmin(_ context.Context, chain *operation.Chain, user store.User) (interface{}, error) {
	for _, op := range chain.Operations() {
		if !operation.IsAdmin(op) {
			return nil, &MixedChainError{Kind: op.Kind()}
		}
	}

	var result interface{}
	for _, op := range chain.Operations() {
		switch admin := op.(type) {
		case *operation.AddGraph:
			if err := s.AddGraph(admin, user); err != nil {
				return nil, err
			}

			result = nil
		case *operation.RemoveGraph:
			if err := s.RemoveGraph(admin.GraphID, user); err != nil {
				return nil, err
			}

			result = true
		case *operation.GetAllGraphIDs:
			result = s.GraphIDs(user)
		}
	}

	return result, nil
}

func closeExecutor(ex store.Executor) {
	if c, ok := ex.(io.Closer); ok {
		_ = c.Close()
	}
}
