/*
	kv package implements a graph store on top of an ordered key-value store.
	Elements are encoded by the codec package: records of the same element
	are merged by the backing store on write, and queries are served by
	prefix scans decoded lazily as the caller pulls results.
*/

package kv

import (
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/mycok/uGraph/codec"
	"github.com/mycok/uGraph/metrics"
	"github.com/mycok/uGraph/operation"
	"github.com/mycok/uGraph/schema"
	"github.com/mycok/uGraph/store"
	"github.com/mycok/uGraph/store/kv/kvstore"
	"github.com/mycok/uGraph/store/trait"

	// Backends selected by URI scheme.
	_ "github.com/mycok/uGraph/store/kv/kvstore/blevekv"
	_ "github.com/mycok/uGraph/store/kv/kvstore/cdb"
)

// StoreType is the value of store.PropStoreType that selects this store.
const StoreType = "kv"

const (
	defaultURI       = "in-memory://"
	defaultBatchSize = 1000
)

// Traits advertised by every kv store.
var Traits = trait.NewSet(
	trait.Ordered,
	trait.StoreAggregation,
	trait.PreAggregationFiltering,
	trait.PostAggregationFiltering,
	trait.QueryAggregation,
)

// Config defines the settings of a kv store.
type Config struct {
	// Id of the graph served by the store.
	GraphID string

	// Schema of the graph.
	Schema *schema.Schema

	// Store properties. PropKVURI selects the backing store when Backend is
	// not provided.
	Properties store.Properties

	// Backend to use. If not specified it is opened from the PropKVURI
	// property, defaulting to an in-memory store. The backend must merge
	// values with Converter.MergeValues of the same schema.
	Backend kvstore.Store

	// Number of records written per backend call.
	BatchSize int

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
	}

	if cfg.BatchSize < 0 {
		err = multierror.Append(err, fmt.Errorf("invalid value for batch size, must be >= 0"))
	} else if cfg.BatchSize == 0 {
		cfg.BatchSize = defaultBatchSize
	}

	if cfg.Properties == nil {
		cfg.Properties = make(store.Properties)
	}

	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}

// New returns a store.Store serving the graph described by cfg from an
// ordered key-value store.
func New(cfg Config) (*store.Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("kv store: config validation failed: %w", err)
	}

	conv, err := codec.NewConverter(cfg.Schema)
	if err != nil {
		return nil, fmt.Errorf("kv store: %w", err)
	}

	backend := cfg.Backend
	if backend == nil {
		uri := cfg.Properties.Get(store.PropKVURI, defaultURI)
		if backend, err = kvstore.Open(uri, conv.MergeValues); err != nil {
			return nil, fmt.Errorf("kv store: %w", err)
		}
	}

	h := &handlers{
		conv:      conv,
		backend:   backend,
		batchSize: cfg.BatchSize,
	}

	st, err := store.New(store.Config{
		GraphID:    cfg.GraphID,
		Schema:     cfg.Schema,
		Properties: cfg.Properties,
		Traits:     Traits,
		Handlers:   h.registrations(),
		Closer:     backend,
		Metrics:    cfg.Metrics,
		Logger:     cfg.Logger.WithField("component", "kv-store"),
	})
	if err != nil {
		_ = backend.Close()

		return nil, err
	}

	return st, nil
}

// NewFactory returns a factory that builds kv stores from their properties.
func NewFactory(m *metrics.Store, logger *logrus.Entry) store.Factory {
	return store.FactoryFunc(func(graphID string, sch *schema.Schema, props store.Properties) (store.Executor, error) {
		return New(Config{
			GraphID:    graphID,
			Schema:     sch,
			Properties: props,
			Metrics:    m,
			Logger:     logger,
		})
	})
}

func (h *handlers) registrations() []store.Registration {
	return []store.Registration{
		{Kind: operation.KindAddElements, Access: store.AccessWrite, Handler: store.HandlerFunc(h.addElements)},
		{Kind: operation.KindGetElements, Access: store.AccessRead, Handler: store.HandlerFunc(h.getElements)},
		{Kind: operation.KindGetAllElements, Access: store.AccessRead, Handler: store.HandlerFunc(h.getAllElements)},
		{Kind: operation.KindGetAdjacentIDs, Access: store.AccessRead, Handler: store.HandlerFunc(h.getAdjacentIDs)},
		{Kind: operation.KindGenerateSplitPoints, Access: store.AccessRead, Handler: store.HandlerFunc(h.generateSplitPoints)},
		{Kind: operation.KindExportRecords, Access: store.AccessRead, Handler: store.HandlerFunc(h.exportRecords)},
	}
}
