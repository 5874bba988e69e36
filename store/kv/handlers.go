package kv

import (
	"bytes"
	"context"
	"fmt"

	"github.com/mycok/uGraph/bulk"
	"github.com/mycok/uGraph/codec"
	"github.com/mycok/uGraph/graph"
	"github.com/mycok/uGraph/operation"
	"github.com/mycok/uGraph/store"
	"github.com/mycok/uGraph/store/kv/kvstore"
)

type handlers struct {
	conv      *codec.Converter
	backend   kvstore.Store
	batchSize int
}

func primaryOnly(q codec.Qualifier) bool { return q.Primary() }

// directionFilter returns the qualifiers kept for the edges of a vertex
// seed. Undirected edges match every direction.
func directionFilter(d operation.Direction) func(codec.Qualifier) bool {
	switch d {
	case operation.DirectionOutgoing:
		return func(q codec.Qualifier) bool { return q != codec.QualifierIncoming }
	case operation.DirectionIncoming:
		return func(q codec.Qualifier) bool { return q != codec.QualifierOutgoing }
	default:
		return nil
	}
}

func (h *handlers) addElements(ctx context.Context, op operation.Operation, input interface{}, ec *store.ExecContext) (interface{}, error) {
	add, ok := op.(*operation.AddElements)
	if !ok {
		return nil, fmt.Errorf("add elements: unexpected operation %T", op)
	}

	var it graph.ElementIterator
	if len(add.Elements) != 0 {
		it = graph.NewElementIterator(add.Elements...)
	} else if it, ok = input.(graph.ElementIterator); !ok {
		return nil, fmt.Errorf("add elements: %w: %T", store.ErrUnexpectedInput, input)
	}
	defer func() { _ = it.Close() }()

	// Every element is converted before anything is written.
	var records []codec.Record
	for it.Next() {
		el := it.Element()

		encoded, err := h.conv.Encode(el)
		if err != nil {
			if add.SkipInvalid {
				ec.Reject(el, err)

				continue
			}

			return nil, fmt.Errorf("add elements: %w", err)
		}

		records = append(records, encoded...)
	}

	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("add elements: %w", err)
	}

	for start := 0; start < len(records); start += h.batchSize {
		end := start + h.batchSize
		if end > len(records) {
			end = len(records)
		}

		if err := h.backend.Write(ctx, records[start:end]); err != nil {
			return nil, fmt.Errorf("add elements: %w", err)
		}
	}

	ec.Logger.WithField("records", len(records)).Debug("elements written")

	return nil, nil
}

func (h *handlers) getElements(ctx context.Context, op operation.Operation, input interface{}, _ *store.ExecContext) (interface{}, error) {
	get, ok := op.(*operation.GetElements)
	if !ok {
		return nil, fmt.Errorf("get elements: unexpected operation %T", op)
	}

	ids, err := seedIterator(get.Seeds, input)
	if err != nil {
		return nil, fmt.Errorf("get elements: %w", err)
	}

	expand := func(id graph.ElementID) ([]scanRange, error) {
		return h.seedRanges(id, get.Direction, get.SeedMatching)
	}

	return newElementIterator(ctx, h, get.View, &seedRanges{ids: ids, expand: expand}), nil
}

func (h *handlers) getAllElements(ctx context.Context, op operation.Operation, _ interface{}, _ *store.ExecContext) (interface{}, error) {
	all, ok := op.(*operation.GetAllElements)
	if !ok {
		return nil, fmt.Errorf("get all elements: unexpected operation %T", op)
	}

	ranges := &fixedRanges{ranges: []scanRange{{keep: primaryOnly}}}

	return newElementIterator(ctx, h, all.View, ranges), nil
}

func (h *handlers) getAdjacentIDs(ctx context.Context, op operation.Operation, input interface{}, _ *store.ExecContext) (interface{}, error) {
	adj, ok := op.(*operation.GetAdjacentIDs)
	if !ok {
		return nil, fmt.Errorf("get adjacent ids: unexpected operation %T", op)
	}

	ids, err := seedIterator(adj.Seeds, input)
	if err != nil {
		return nil, fmt.Errorf("get adjacent ids: %w", err)
	}

	expand := func(id graph.ElementID) ([]scanRange, error) {
		seed, ok := id.(graph.EntityID)
		if !ok {
			return nil, nil
		}

		prefix, err := h.conv.AdjacencyPrefix(seed.Vertex)
		if err != nil {
			return nil, err
		}

		return []scanRange{prefixRange(prefix, directionFilter(adj.Direction))}, nil
	}

	return adjacentIDIterator{newElementIterator(ctx, h, adj.View, &seedRanges{ids: ids, expand: expand})}, nil
}

func (h *handlers) generateSplitPoints(ctx context.Context, op operation.Operation, _ interface{}, _ *store.ExecContext) (interface{}, error) {
	gen, ok := op.(*operation.GenerateSplitPoints)
	if !ok {
		return nil, fmt.Errorf("generate split points: unexpected operation %T", op)
	}

	view := &operation.View{Groups: []string{gen.Group}}
	it := newElementIterator(ctx, h, view, &fixedRanges{ranges: []scanRange{{keep: primaryOnly}}})
	defer func() { _ = it.Close() }()

	return h.conv.CalculateSplitPoints(it, gen.Group, gen.NumSplits, gen.SampleRate)
}

func (h *handlers) exportRecords(ctx context.Context, op operation.Operation, input interface{}, ec *store.ExecContext) (interface{}, error) {
	exp, ok := op.(*operation.ExportRecords)
	if !ok {
		return nil, fmt.Errorf("export records: unexpected operation %T", op)
	}

	it, ok := input.(graph.ElementIterator)
	if !ok {
		return nil, fmt.Errorf("export records: %w: %T", store.ErrUnexpectedInput, input)
	}
	defer func() { _ = it.Close() }()

	exporter, err := bulk.NewExporter(bulk.Config{
		Converter:   h.conv,
		Splits:      exp.Splits,
		Sink:        exp.Sink,
		Workers:     exp.Workers,
		SkipInvalid: exp.SkipInvalid,
		Logger:      ec.Logger,
	})
	if err != nil {
		return nil, err
	}

	res, err := exporter.Export(ctx, it)
	if err != nil {
		return nil, err
	}

	for _, rej := range res.Rejected {
		ec.Reject(rej.Element, rej.Err)
	}

	return res.Written, nil
}

// seedRanges returns the ranges holding the records related to a seed.
func (h *handlers) seedRanges(id graph.ElementID, dir operation.Direction, match operation.SeedMatching) ([]scanRange, error) {
	switch seed := id.(type) {
	case graph.EntityID:
		if match == operation.SeedEqual {
			prefix, err := h.conv.EntityPrefix(seed.Vertex)
			if err != nil {
				return nil, err
			}

			return []scanRange{prefixRange(prefix, nil)}, nil
		}

		// Entity records sort right before the edges of the same vertex.
		prefix, err := h.conv.VertexPrefix(seed.Vertex)
		if err != nil {
			return nil, err
		}

		return []scanRange{prefixRange(prefix, directionFilter(dir))}, nil
	case graph.EdgeID:
		return h.edgeSeedRanges(seed, match)
	default:
		return nil, fmt.Errorf("unsupported seed type %T", id)
	}
}

func (h *handlers) edgeSeedRanges(seed graph.EdgeID, match operation.SeedMatching) ([]scanRange, error) {
	src, err := h.conv.EncodeIdentifier(seed.Source)
	if err != nil {
		return nil, err
	}

	dest, err := h.conv.EncodeIdentifier(seed.Destination)
	if err != nil {
		return nil, err
	}

	first, second := seed.Source, seed.Destination
	want := codec.QualifierOutgoing
	if !seed.Directed {
		want = codec.QualifierUndirected
		if bytes.Compare(src, dest) > 0 {
			first, second = second, first
		}
	}

	prefix, err := h.conv.EdgePrefix(first, second)
	if err != nil {
		return nil, err
	}

	ranges := []scanRange{prefixRange(prefix, func(q codec.Qualifier) bool { return q == want })}
	if match == operation.SeedEqual {
		return ranges, nil
	}

	endpoints := []interface{}{seed.Source}
	if !bytes.Equal(src, dest) {
		endpoints = append(endpoints, seed.Destination)
	}

	for _, v := range endpoints {
		entity, err := h.conv.EntityPrefix(v)
		if err != nil {
			return nil, err
		}

		ranges = append(ranges, prefixRange(entity, nil))
	}

	return ranges, nil
}

// seedIterator returns the seeds of an operation, or its input when the
// operation lists none.
func seedIterator(seeds []graph.ElementID, input interface{}) (graph.ElementIDIterator, error) {
	if len(seeds) != 0 {
		return graph.NewElementIDIterator(seeds...), nil
	}

	switch it := input.(type) {
	case graph.ElementIDIterator:
		return it, nil
	case graph.ElementIterator:
		return graph.AsElementIDs(it), nil
	default:
		return nil, fmt.Errorf("%w: %T", store.ErrUnexpectedInput, input)
	}
}
