package store

import (
	"context"
	"fmt"

	"github.com/mycok/uGraph/graph"
	"github.com/mycok/uGraph/operation"
)

// genericHandlers returns the handlers every store registers by default.
// They only consume the output of the previous operation.
func genericHandlers() []Registration {
	return []Registration{
		{Kind: operation.KindCount, Access: AccessRead, Handler: HandlerFunc(handleCount)},
		{Kind: operation.KindLimit, Access: AccessRead, Handler: HandlerFunc(handleLimit)},
		{Kind: operation.KindExists, Access: AccessRead, Handler: HandlerFunc(handleExists)},
	}
}

func handleCount(ctx context.Context, _ operation.Operation, input interface{}, _ *ExecContext) (interface{}, error) {
	it, err := inputIterator(input)
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close() }()

	var count int64
	for it.Next() {
		if count%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		count++
	}

	if err := it.Error(); err != nil {
		return nil, err
	}

	return count, nil
}

func handleExists(_ context.Context, _ operation.Operation, input interface{}, _ *ExecContext) (interface{}, error) {
	it, err := inputIterator(input)
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close() }()

	found := it.Next()
	if err := it.Error(); err != nil {
		return nil, err
	}

	return found, nil
}

func handleLimit(_ context.Context, op operation.Operation, input interface{}, _ *ExecContext) (interface{}, error) {
	limit, ok := op.(*operation.Limit)
	if !ok {
		return nil, fmt.Errorf("limit handler: unexpected operation %T", op)
	}

	switch it := input.(type) {
	case graph.ElementIterator:
		return &limitedElementIterator{ElementIterator: it, remaining: limit.N}, nil
	case graph.ElementIDIterator:
		return &limitedIDIterator{ElementIDIterator: it, remaining: limit.N}, nil
	default:
		return nil, fmt.Errorf("limit handler: %w: %T", ErrUnexpectedInput, input)
	}
}

// inputIterator returns input as an iterator. Element streams are accepted
// wherever id streams are.
func inputIterator(input interface{}) (graph.Iterator, error) {
	switch it := input.(type) {
	case graph.ElementIterator:
		return it, nil
	case graph.ElementIDIterator:
		return it, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedInput, input)
	}
}

// limitedElementIterator stops after a fixed number of elements. The
// underlying iterator is not advanced past the limit.
type limitedElementIterator struct {
	graph.ElementIterator
	remaining int
}

func (i *limitedElementIterator) Next() bool {
	if i.remaining <= 0 {
		return false
	}

	i.remaining--

	return i.ElementIterator.Next()
}

type limitedIDIterator struct {
	graph.ElementIDIterator
	remaining int
}

func (i *limitedIDIterator) Next() bool {
	if i.remaining <= 0 {
		return false
	}

	i.remaining--

	return i.ElementIDIterator.Next()
}
