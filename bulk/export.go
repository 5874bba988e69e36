package bulk

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/mycok/uGraph/codec"
	"github.com/mycok/uGraph/graph"
)

var payloadPool = sync.Pool{
	New: func() interface{} {
		return new(payload)
	},
}

type payload struct {
	element    graph.Element  // populated by the element source.
	records    []codec.Record // populated by the encoder.
	partitions []int          // populated by the partitioner.
}

// release resets p and returns it to the pool once it reaches the sink or
// gets dropped by a stage.
func (p *payload) release() {
	p.element = nil
	p.records = p.records[:0]
	p.partitions = p.partitions[:0]

	payloadPool.Put(p)
}

// Rejection describes an element that could not be encoded.
type Rejection struct {
	Element graph.Element
	Err     error
}

// Result summarises a completed export.
type Result struct {
	// Written is the total number of records handed to the sink.
	Written int64

	// PerPartition holds the number of records written to each partition.
	PerPartition map[int]int64

	// Rejected lists the elements skipped because they failed conversion.
	// It is only populated when SkipInvalid is set.
	Rejected []Rejection
}

// Config defines the settings of an Exporter.
type Config struct {
	// Converter used to turn elements into records.
	Converter *codec.Converter

	// Split points that assign records to partitions. An empty set sends
	// every record to partition 0.
	Splits codec.SplitPoints

	// Destination of the exported records.
	Sink RecordSink

	// The number of concurrent encoding workers. Defaults to 1.
	Workers int

	// SkipInvalid rejects elements that fail conversion instead of aborting
	// the export.
	SkipInvalid bool

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error

	if cfg.Converter == nil {
		err = multierror.Append(err, fmt.Errorf("converter not provided"))
	}

	if cfg.Sink == nil {
		err = multierror.Append(err, fmt.Errorf("record sink not provided"))
	}

	if cfg.Workers < 0 {
		err = multierror.Append(err, fmt.Errorf("invalid value for workers, must be >= 0"))
	} else if cfg.Workers == 0 {
		cfg.Workers = 1
	}

	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}

// Exporter encodes element streams into partitioned records.
type Exporter struct {
	cfg Config
}

// NewExporter returns an Exporter for the given configuration.
func NewExporter(cfg Config) (*Exporter, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("bulk exporter: config validation failed: %w", err)
	}

	return &Exporter{cfg: cfg}, nil
}

// Export drains it and writes the records of every element to the sink. It
// blocks until the iterator is exhausted, an error occurs or ctx is
// cancelled. The iterator is not closed.
func (e *Exporter) Export(ctx context.Context, it graph.ElementIterator) (*Result, error) {
	enc := &encoder{conv: e.cfg.Converter, skipInvalid: e.cfg.SkipInvalid, logger: e.cfg.Logger}
	dst := &recordSink{sink: e.cfg.Sink, perPartition: make(map[int]int64)}

	p := newPipeline(
		newFixedWorkerPool(enc, e.cfg.Workers),
		newFIFO(partitioner{splits: e.cfg.Splits}),
	)

	err := p.execute(ctx, &elementSource{it: it}, dst)
	if err == nil {
		// A cancelled context stops every worker quietly.
		err = ctx.Err()
	}

	res := &Result{
		Written:      atomic.LoadInt64(&dst.written),
		PerPartition: dst.perPartition,
		Rejected:     enc.rejections(),
	}

	e.cfg.Logger.WithFields(logrus.Fields{
		"written":  res.Written,
		"rejected": len(res.Rejected),
	}).Debug("bulk export finished")

	return res, err
}

type elementSource struct {
	it graph.ElementIterator
}

func (s *elementSource) Next(context.Context) bool { return s.it.Next() }

func (s *elementSource) Error() error { return s.it.Error() }

func (s *elementSource) Payload() *payload {
	p := payloadPool.Get().(*payload)
	p.element = s.it.Element()

	return p
}

type encoder struct {
	conv        *codec.Converter
	skipInvalid bool
	logger      *logrus.Entry

	mu       sync.Mutex
	rejected []Rejection
}

func (enc *encoder) Process(_ context.Context, p *payload) (*payload, error) {
	recs, err := enc.conv.Encode(p.element)
	if err != nil {
		if !enc.skipInvalid {
			return nil, fmt.Errorf("encode %v: %w", p.element, err)
		}

		enc.logger.WithField("err", err).Debug("skipping invalid element")

		enc.mu.Lock()
		enc.rejected = append(enc.rejected, Rejection{Element: p.element, Err: err})
		enc.mu.Unlock()

		return nil, nil
	}

	p.records = append(p.records, recs...)

	return p, nil
}

func (enc *encoder) rejections() []Rejection {
	enc.mu.Lock()
	defer enc.mu.Unlock()

	return append([]Rejection(nil), enc.rejected...)
}

type partitioner struct {
	splits codec.SplitPoints
}

func (pt partitioner) Process(_ context.Context, p *payload) (*payload, error) {
	for _, rec := range p.records {
		p.partitions = append(p.partitions, pt.splits.Partition(rec.Key))
	}

	return p, nil
}

type recordSink struct {
	sink    RecordSink
	written int64

	// Only the sink worker goroutine touches perPartition.
	perPartition map[int]int64
}

func (s *recordSink) Consume(ctx context.Context, p *payload) error {
	for i, rec := range p.records {
		if err := s.sink.Write(ctx, p.partitions[i], rec); err != nil {
			return err
		}

		s.perPartition[p.partitions[i]]++
		atomic.AddInt64(&s.written, 1)
	}

	return nil
}
