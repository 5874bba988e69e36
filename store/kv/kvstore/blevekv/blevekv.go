/*
	blevekv package adapts the ordered key-value stores shipped with bleve to
	the kvstore contract. Values written to an existing key are combined by a
	bleve merge operator bound to the caller's merge function.

	Two schemes are registered:
		in-memory://        gtreap, a persistent in-memory treap.
		bolt:///path/to.db  boltdb, a single file on disk.
*/

package blevekv

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/blevesearch/bleve/index/store"
	"github.com/blevesearch/bleve/index/store/boltdb"
	"github.com/blevesearch/bleve/index/store/gtreap"
	"github.com/hashicorp/go-multierror"

	"github.com/mycok/uGraph/codec"
	"github.com/mycok/uGraph/store/kv/kvstore"
)

// Supported URI schemes.
const (
	SchemeMemory = "in-memory"
	SchemeBolt   = "bolt"
)

func init() {
	kvstore.Register(SchemeMemory, func(_ *url.URL, merge kvstore.MergeFunc) (kvstore.Store, error) {
		return NewInMemory(merge)
	})

	kvstore.Register(SchemeBolt, func(u *url.URL, merge kvstore.MergeFunc) (kvstore.Store, error) {
		return NewBolt(u.Host+u.Path, merge)
	})
}

// Static and compile-time check to ensure Store implements kvstore.Store.
var _ kvstore.Store = (*Store)(nil)

// Store is a kvstore.Store backed by a bleve KVStore.
type Store struct {
	kv store.KVStore
	mo *mergeOperator

	// bleve applies merges while holding its own locks and only reports
	// success or failure, so writes are serialised to attribute merge errors
	// to the call that caused them.
	writeMu sync.Mutex
}

// NewInMemory returns a store kept in memory by a gtreap.
func NewInMemory(merge kvstore.MergeFunc) (*Store, error) {
	mo := &mergeOperator{merge: merge}

	// gtreap requires a path entry even though it never touches disk.
	kv, err := gtreap.New(mo, map[string]interface{}{"path": ""})
	if err != nil {
		return nil, fmt.Errorf("bleve kv: %w", err)
	}

	return &Store{kv: kv, mo: mo}, nil
}

// NewBolt returns a store persisted to the bolt database file at path.
func NewBolt(path string, merge kvstore.MergeFunc) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("bleve kv: bolt database path not provided")
	}

	mo := &mergeOperator{merge: merge}

	kv, err := boltdb.New(mo, map[string]interface{}{"path": path})
	if err != nil {
		return nil, fmt.Errorf("bleve kv: %w", err)
	}

	return &Store{kv: kv, mo: mo}, nil
}

// Write merges records into the store.
func (s *Store) Write(ctx context.Context, records []codec.Record) error {
	if len(records) == 0 {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	w, err := s.kv.Writer()
	if err != nil {
		return fmt.Errorf("bleve kv: writer: %w", err)
	}
	defer func() { _ = w.Close() }()

	batch := w.NewBatch()
	defer func() { _ = batch.Close() }()

	for _, rec := range records {
		batch.Merge(rec.Key, rec.Value)
	}

	s.mo.reset()
	if err := w.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("bleve kv: write: %w", err)
	}

	if err := s.mo.failure(); err != nil {
		return fmt.Errorf("bleve kv: write: %w", err)
	}

	return nil
}

// Scan returns a cursor over [start, end).
func (s *Store) Scan(ctx context.Context, start, end []byte) (kvstore.Cursor, error) {
	r, err := s.kv.Reader()
	if err != nil {
		return nil, fmt.Errorf("bleve kv: reader: %w", err)
	}

	if start == nil {
		start = []byte{}
	}

	return &cursor{ctx: ctx, reader: r, it: r.RangeIterator(start, end)}, nil
}

// Close closes the underlying bleve store.
func (s *Store) Close() error {
	return s.kv.Close()
}

// mergeOperator implements store.MergeOperator on top of a MergeFunc. A
// failed merge keeps the stored value and is reported by the Write that
// triggered it.
type mergeOperator struct {
	merge kvstore.MergeFunc

	mu  sync.Mutex
	err error
}

func (mo *mergeOperator) FullMerge(key, existing []byte, operands [][]byte) ([]byte, bool) {
	acc := existing
	for _, operand := range operands {
		if acc == nil {
			acc = operand

			continue
		}

		merged, err := mo.merge(key, acc, operand)
		if err != nil {
			mo.fail(err)

			if existing == nil {
				return operands[0], true
			}

			return existing, true
		}

		acc = merged
	}

	return acc, true
}

func (mo *mergeOperator) PartialMerge(key, left, right []byte) ([]byte, bool) {
	merged, err := mo.merge(key, left, right)
	if err != nil {
		mo.fail(err)

		return nil, false
	}

	return merged, true
}

func (mo *mergeOperator) Name() string { return "ugraph.aggregate" }

func (mo *mergeOperator) fail(err error) {
	mo.mu.Lock()
	if mo.err == nil {
		mo.err = fmt.Errorf("%w: %v", kvstore.ErrMergeFailed, err)
	}
	mo.mu.Unlock()
}

func (mo *mergeOperator) reset() {
	mo.mu.Lock()
	mo.err = nil
	mo.mu.Unlock()
}

func (mo *mergeOperator) failure() error {
	mo.mu.Lock()
	defer mo.mu.Unlock()

	return mo.err
}

type cursor struct {
	ctx     context.Context
	reader  store.KVReader
	it      store.KVIterator
	started bool
	closed  bool
	rec     codec.Record
	lastErr error
}

func (c *cursor) Next() bool {
	if c.closed || c.lastErr != nil {
		return false
	}

	if c.started {
		c.it.Next()
	}

	c.started = true

	if c.lastErr = c.ctx.Err(); c.lastErr != nil {
		return false
	}

	key, value, ok := c.it.Current()
	if !ok {
		return false
	}

	// Iterator buffers are only valid until the iterator advances.
	c.rec = codec.Record{
		Key:   append([]byte(nil), key...),
		Value: append([]byte(nil), value...),
	}

	return true
}

func (c *cursor) Record() codec.Record { return c.rec }

func (c *cursor) Error() error { return c.lastErr }

func (c *cursor) Close() error {
	if c.closed {
		return nil
	}

	c.closed = true

	var err error
	if itErr := c.it.Close(); itErr != nil {
		err = multierror.Append(err, itErr)
	}

	if readerErr := c.reader.Close(); readerErr != nil {
		err = multierror.Append(err, readerErr)
	}

	if err != nil {
		return fmt.Errorf("bleve kv cursor: %w", err)
	}

	return nil
}
