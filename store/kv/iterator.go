package kv

import (
	"bytes"
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/mycok/uGraph/codec"
	"github.com/mycok/uGraph/graph"
	"github.com/mycok/uGraph/operation"
	"github.com/mycok/uGraph/store/kv/kvstore"
)

// scanRange is a key range to scan along with the qualifiers to keep.
type scanRange struct {
	start, end []byte
	keep       func(codec.Qualifier) bool
}

func prefixRange(prefix []byte, keep func(codec.Qualifier) bool) scanRange {
	return scanRange{start: prefix, end: codec.PrefixEnd(prefix), keep: keep}
}

// rangeSource yields the ranges an iterator scans, one at a time.
type rangeSource interface {
	next() (scanRange, bool, error)
	close() error
}

type fixedRanges struct {
	ranges []scanRange
}

func (r *fixedRanges) next() (scanRange, bool, error) {
	if len(r.ranges) == 0 {
		return scanRange{}, false, nil
	}

	out := r.ranges[0]
	r.ranges = r.ranges[1:]

	return out, true, nil
}

func (r *fixedRanges) close() error {
	r.ranges = nil

	return nil
}

// seedRanges expands every seed pulled from ids into the ranges that hold
// its related records. Seeds are read as the scan progresses.
type seedRanges struct {
	ids    graph.ElementIDIterator
	expand func(graph.ElementID) ([]scanRange, error)
	queue  []scanRange
}

func (r *seedRanges) next() (scanRange, bool, error) {
	for len(r.queue) == 0 {
		if !r.ids.Next() {
			return scanRange{}, false, r.ids.Error()
		}

		ranges, err := r.expand(r.ids.ElementID())
		if err != nil {
			return scanRange{}, false, err
		}

		r.queue = ranges
	}

	out := r.queue[0]
	r.queue = r.queue[1:]

	return out, true, nil
}

func (r *seedRanges) close() error {
	r.queue = nil

	return r.ids.Close()
}

// scanned is a decoded record tagged with the range it was read from.
type scanned struct {
	codec.DecodedRecord
	rangeSeq int
}

// Static and compile-time check to ensure elementIterator implements
// graph.ElementIterator interface.
var _ graph.ElementIterator = (*elementIterator)(nil)

// elementIterator scans ranges of the backend one after the other and
// decodes the records that pass the view. With a summarising view the
// records sharing an identity within one range are merged into a single
// element.
type elementIterator struct {
	ctx     context.Context
	conv    *codec.Converter
	backend kvstore.Store
	view    *operation.View
	ranges  rangeSource

	cur      kvstore.Cursor
	keep     func(codec.Qualifier) bool
	rangeSeq int

	lookahead *scanned
	current   scanned
	lastErr   error
	closed    bool
}

func newElementIterator(
	ctx context.Context, h *handlers, view *operation.View, ranges rangeSource,
) *elementIterator {

	return &elementIterator{
		ctx:     ctx,
		conv:    h.conv,
		backend: h.backend,
		view:    view,
		ranges:  ranges,
	}
}

func (i *elementIterator) Next() bool {
	if i.closed || i.lastErr != nil {
		return false
	}

	for {
		rec, ok := i.pull()
		if !ok {
			return false
		}

		if i.view != nil && i.view.Summarise {
			if rec, ok = i.summarise(rec); !ok {
				return false
			}
		}

		pass, err := i.view.AcceptPostAggregation(rec.Element)
		if err != nil {
			i.lastErr = err

			return false
		} else if !pass {
			continue
		}

		rec.Element = i.view.Project(rec.Element)
		i.current = rec

		return true
	}
}

// summarise merges rec with the records that follow it in the same range
// and share its identity. The first record that does not is kept as a
// lookahead for the next call.
func (i *elementIterator) summarise(rec scanned) (scanned, bool) {
	group := rec.Element.GetGroup()
	def, _, _ := i.conv.Schema().Definition(group)

	acc := stripGroupBy(rec.Element, def.GroupBy)
	for {
		next, ok := i.pull()
		if !ok {
			if i.lastErr != nil {
				return scanned{}, false
			}

			break
		}

		if next.rangeSeq != rec.rangeSeq || !bytes.Equal(next.Identity, rec.Identity) {
			i.lookahead = &next

			break
		}

		merged, err := i.conv.Schema().Aggregate(group, acc.GetProperties(), stripGroupBy(next.Element, def.GroupBy).GetProperties())
		if err != nil {
			i.lastErr = fmt.Errorf("summarise: %w", err)

			return scanned{}, false
		}

		setProperties(acc, merged)
	}

	rec.Element = acc

	return rec, true
}

// pull returns the next record that passes the qualifier, group and
// pre-aggregation checks.
func (i *elementIterator) pull() (scanned, bool) {
	if i.lookahead != nil {
		rec := *i.lookahead
		i.lookahead = nil

		return rec, true
	}

	for {
		if err := i.ctx.Err(); err != nil {
			i.lastErr = err

			return scanned{}, false
		}

		if i.cur == nil && !i.openNextRange() {
			return scanned{}, false
		}

		if !i.cur.Next() {
			err := i.cur.Error()
			_ = i.cur.Close()
			i.cur = nil

			if err != nil {
				i.lastErr = err

				return scanned{}, false
			}

			continue
		}

		d, err := i.conv.DecodeRecord(i.cur.Record())
		if err != nil {
			i.lastErr = err

			return scanned{}, false
		}

		if i.keep != nil && !i.keep(d.Qualifier) {
			continue
		} else if !i.view.IncludesGroup(d.Element.GetGroup()) {
			continue
		}

		pass, err := i.view.AcceptPreAggregation(d.Element)
		if err != nil {
			i.lastErr = err

			return scanned{}, false
		} else if !pass {
			continue
		}

		return scanned{DecodedRecord: d, rangeSeq: i.rangeSeq}, true
	}
}

func (i *elementIterator) openNextRange() bool {
	r, ok, err := i.ranges.next()
	if err != nil {
		i.lastErr = err

		return false
	} else if !ok {
		return false
	}

	cur, err := i.backend.Scan(i.ctx, r.start, r.end)
	if err != nil {
		i.lastErr = err

		return false
	}

	i.cur, i.keep = cur, r.keep
	i.rangeSeq++

	return true
}

func (i *elementIterator) Element() graph.Element { return i.current.Element }

// qualifier returns the qualifier of the record the current element was
// read from.
func (i *elementIterator) qualifier() codec.Qualifier { return i.current.Qualifier }

func (i *elementIterator) Error() error { return i.lastErr }

func (i *elementIterator) Close() error {
	if i.closed {
		return nil
	}

	i.closed = true
	i.lookahead = nil

	var err error
	if i.cur != nil {
		if cErr := i.cur.Close(); cErr != nil {
			err = multierror.Append(err, cErr)
		}

		i.cur = nil
	}

	if rErr := i.ranges.close(); rErr != nil {
		err = multierror.Append(err, rErr)
	}

	return err
}

// Static and compile-time check to ensure adjacentIDIterator implements
// graph.ElementIDIterator interface.
var _ graph.ElementIDIterator = (*adjacentIDIterator)(nil)

// adjacentIDIterator yields the end-point opposite to the seed of every
// edge produced by an adjacency scan.
type adjacentIDIterator struct {
	*elementIterator
}

func (i adjacentIDIterator) ElementID() graph.ElementID {
	edge := i.Element().(*graph.Edge)

	switch i.qualifier() {
	case codec.QualifierIncoming, codec.QualifierUndirectedCopy:
		return graph.EntityID{Vertex: edge.Source}
	default:
		return graph.EntityID{Vertex: edge.Destination}
	}
}

func stripGroupBy(el graph.Element, groupBy []string) graph.Element {
	out := el.Clone()
	props := out.GetProperties()
	for _, name := range groupBy {
		delete(props, name)
	}

	return out
}

func setProperties(el graph.Element, props graph.Properties) {
	switch e := el.(type) {
	case *graph.Entity:
		e.Properties = props
	case *graph.Edge:
		e.Properties = props
	}
}
