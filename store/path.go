package store

import (
	"context"
	"fmt"

	"github.com/mycok/uGraph/graph"
	"github.com/mycok/uGraph/operation"
)

// handlePath runs a Path as a pipeline of the store's own GetAdjacentIDs and
// GetElements handlers. The frontier between hops is streamed and may repeat
// vertices reached over several edges.
func (s *Store) handlePath(ctx context.Context, op operation.Operation, input interface{}, ec *ExecContext) (interface{}, error) {
	path, ok := op.(*operation.Path)
	if !ok {
		return nil, fmt.Errorf("path handler: unexpected operation %T", op)
	}

	frontier := input
	if len(path.Seeds) != 0 {
		closeValue(input)
		frontier = graph.NewElementIDIterator(path.Seeds...)
	}

	last := len(path.Hops) - 1
	for i, hop := range path.Hops {
		var step operation.Operation = &operation.GetAdjacentIDs{View: hop.View, Direction: hop.Direction}
		if i == last {
			step = &operation.GetElements{View: hop.View, Direction: hop.Direction, SeedMatching: hop.SeedMatching}
		}

		h, err := s.resolve(step)
		if err != nil {
			closeValue(frontier)

			return nil, fmt.Errorf("path hop %d: %w", i, err)
		}

		out, err := h.Handle(ctx, step, frontier, ec)
		if err != nil {
			closeValue(frontier)

			return nil, fmt.Errorf("path hop %d: %w", i, err)
		}

		frontier = out
	}

	return frontier, nil
}
