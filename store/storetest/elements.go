package storetest

import (
	"errors"

	check "gopkg.in/check.v1"

	"github.com/mycok/uGraph/codec"
	"github.com/mycok/uGraph/graph"
	"github.com/mycok/uGraph/operation"
	"github.com/mycok/uGraph/store"
)

// TestAddElementsAggregates verifies that elements sharing an identity are
// merged when written.
func (s *BaseSuite) TestAddElementsAggregates(c *check.C) {
	s.add(c, person("alice", 1, "a"), person("bob", 1))
	s.add(c, person("alice", 2, "b"))

	got := s.elements(c, &operation.GetAllElements{})
	c.Assert(got, check.DeepEquals, []graph.Element{
		person("alice", 3, "a", "b"),
		person("bob", 1),
	})
}

// TestGetAllElementsSkipsReverseCopies verifies that every edge is returned
// once by a full scan, with undirected edges ordered by their end-points.
func (s *BaseSuite) TestGetAllElementsSkipsReverseCopies(c *check.C) {
	s.add(c, knows("alice", "bob", true, 1), knows("dave", "carol", false, 2))

	got := s.elements(c, &operation.GetAllElements{})
	c.Assert(got, check.DeepEquals, []graph.Element{
		knows("alice", "bob", true, 1),
		knows("carol", "dave", false, 2),
	})
}

// TestGetElementsByVertex verifies direction handling for vertex seeds.
func (s *BaseSuite) TestGetElementsByVertex(c *check.C) {
	s.addNeighbourhood(c)

	specs := []struct {
		dir  operation.Direction
		want []graph.Element
	}{
		{
			dir: operation.DirectionEither,
			want: []graph.Element{
				person("alice", 1),
				knows("alice", "bob", true, 1),
				knows("carol", "alice", true, 1),
				knows("alice", "dave", false, 1),
			},
		},
		{
			dir: operation.DirectionOutgoing,
			want: []graph.Element{
				person("alice", 1),
				knows("alice", "bob", true, 1),
				knows("alice", "dave", false, 1),
			},
		},
		{
			dir: operation.DirectionIncoming,
			want: []graph.Element{
				person("alice", 1),
				knows("carol", "alice", true, 1),
				knows("alice", "dave", false, 1),
			},
		},
	}

	for i, spec := range specs {
		got := s.elements(c, &operation.GetElements{
			Seeds:     []graph.ElementID{graph.EntityID{Vertex: "alice"}},
			Direction: spec.dir,
		})
		c.Assert(got, check.DeepEquals, spec.want, check.Commentf("spec %d", i))
	}

	got := s.elements(c, &operation.GetElements{
		Seeds:        []graph.ElementID{graph.EntityID{Vertex: "alice"}},
		SeedMatching: operation.SeedEqual,
	})
	c.Assert(got, check.DeepEquals, []graph.Element{person("alice", 1)})
}

// TestGetElementsFromSecondaryEndpoint verifies that directed edges of a
// bidirectional group are found from their destination and that edges of
// other groups are only indexed under their source.
func (s *BaseSuite) TestGetElementsFromSecondaryEndpoint(c *check.C) {
	s.add(c,
		knows("alice", "bob", true, 1),
		graph.NewEdge("Follows", "alice", "carol", true, graph.Properties{"count": int64(1)}),
	)

	got := s.elements(c, &operation.GetElements{
		Seeds:     []graph.ElementID{graph.EntityID{Vertex: "bob"}},
		Direction: operation.DirectionIncoming,
	})
	c.Assert(got, check.DeepEquals, []graph.Element{knows("alice", "bob", true, 1)})

	got = s.elements(c, &operation.GetElements{
		Seeds:     []graph.ElementID{graph.EntityID{Vertex: "carol"}},
		Direction: operation.DirectionIncoming,
	})
	c.Assert(got, check.HasLen, 0)

	got = s.elements(c, &operation.GetElements{
		Seeds:     []graph.ElementID{graph.EntityID{Vertex: "alice"}},
		Direction: operation.DirectionOutgoing,
	})
	c.Assert(got, check.HasLen, 2)
}

// TestGetElementsByEdge verifies edge seeds with both seed matching modes.
func (s *BaseSuite) TestGetElementsByEdge(c *check.C) {
	s.addNeighbourhood(c)
	s.add(c, person("bob", 4))

	got := s.elements(c, &operation.GetElements{
		Seeds:        []graph.ElementID{graph.EdgeID{Source: "alice", Destination: "bob", Directed: true}},
		SeedMatching: operation.SeedEqual,
	})
	c.Assert(got, check.DeepEquals, []graph.Element{knows("alice", "bob", true, 1)})

	got = s.elements(c, &operation.GetElements{
		Seeds: []graph.ElementID{graph.EdgeID{Source: "alice", Destination: "bob", Directed: true}},
	})
	c.Assert(got, check.DeepEquals, []graph.Element{
		knows("alice", "bob", true, 1),
		person("alice", 1),
		person("bob", 4),
	})

	// Undirected seeds match regardless of the order of their end-points.
	got = s.elements(c, &operation.GetElements{
		Seeds:        []graph.ElementID{graph.EdgeID{Source: "dave", Destination: "alice"}},
		SeedMatching: operation.SeedEqual,
	})
	c.Assert(got, check.DeepEquals, []graph.Element{knows("alice", "dave", false, 1)})

	// A directed seed does not match an undirected edge.
	got = s.elements(c, &operation.GetElements{
		Seeds:        []graph.ElementID{graph.EdgeID{Source: "alice", Destination: "dave", Directed: true}},
		SeedMatching: operation.SeedEqual,
	})
	c.Assert(got, check.HasLen, 0)
}

// TestGetAdjacentIDs verifies that the opposite end-point of every matching
// edge is returned.
func (s *BaseSuite) TestGetAdjacentIDs(c *check.C) {
	s.addNeighbourhood(c)

	got := s.ids(c, &operation.GetAdjacentIDs{
		Seeds: []graph.ElementID{graph.EntityID{Vertex: "alice"}},
	})
	c.Assert(got, check.DeepEquals, []graph.ElementID{
		graph.EntityID{Vertex: "bob"},
		graph.EntityID{Vertex: "carol"},
		graph.EntityID{Vertex: "dave"},
	})

	got = s.ids(c, &operation.GetAdjacentIDs{
		Seeds:     []graph.ElementID{graph.EntityID{Vertex: "alice"}},
		Direction: operation.DirectionIncoming,
	})
	c.Assert(got, check.DeepEquals, []graph.ElementID{
		graph.EntityID{Vertex: "carol"},
		graph.EntityID{Vertex: "dave"},
	})

	// Edge seeds have no adjacent vertices.
	got = s.ids(c, &operation.GetAdjacentIDs{
		Seeds: []graph.ElementID{graph.EdgeID{Source: "alice", Destination: "bob", Directed: true}},
	})
	c.Assert(got, check.HasLen, 0)
}

// TestChainedSeeds verifies that a query without seeds reads them from the
// previous operation.
func (s *BaseSuite) TestChainedSeeds(c *check.C) {
	s.addNeighbourhood(c)
	s.add(c, person("bob", 2), person("dave", 3))

	got := s.elements(c,
		&operation.GetAdjacentIDs{
			Seeds:     []graph.ElementID{graph.EntityID{Vertex: "alice"}},
			Direction: operation.DirectionOutgoing,
		},
		&operation.GetElements{SeedMatching: operation.SeedEqual},
	)
	c.Assert(got, check.DeepEquals, []graph.Element{person("bob", 2), person("dave", 3)})
}

// TestAddElementsRejectsInvalid verifies the skip-on-error mode of
// AddElements.
func (s *BaseSuite) TestAddElementsRejectsInvalid(c *check.C) {
	invalid := graph.NewEntity("Unknown", "x", nil)

	_, err := s.execute(c, &operation.AddElements{Elements: []graph.Element{person("alice", 1), invalid}})
	c.Assert(errors.Is(err, codec.ErrElementConversion), check.Equals, true, check.Commentf("%v", err))
	c.Assert(s.elements(c, &operation.GetAllElements{}), check.HasLen, 0)

	_, err = s.execute(c, &operation.AddElements{
		Elements:    []graph.Element{person("alice", 1), invalid},
		SkipInvalid: true,
	})

	var rejected *store.RejectedElementsError
	c.Assert(errors.As(err, &rejected), check.Equals, true, check.Commentf("%v", err))
	c.Assert(rejected.Rejected, check.HasLen, 1)
	c.Assert(rejected.Rejected[0].Element, check.Equals, graph.Element(invalid))
	c.Assert(s.elements(c, &operation.GetAllElements{}), check.DeepEquals, []graph.Element{person("alice", 1)})
}

// TestPath verifies that each hop of a path starts from the vertices reached
// by the previous one.
func (s *BaseSuite) TestPath(c *check.C) {
	s.addNeighbourhood(c)
	s.add(c, person("bob", 2), knows("bob", "erin", true, 1))

	specs := []struct {
		ops  []operation.Operation
		want []graph.Element
	}{
		{
			ops: []operation.Operation{&operation.Path{
				Seeds: []graph.ElementID{graph.EntityID{Vertex: "carol"}},
				Hops: []*operation.GetElements{
					{Direction: operation.DirectionOutgoing},
					{Direction: operation.DirectionOutgoing},
					{SeedMatching: operation.SeedEqual},
				},
			}},
			want: []graph.Element{person("bob", 2)},
		},
		{
			ops: []operation.Operation{&operation.Path{
				Seeds: []graph.ElementID{graph.EntityID{Vertex: "carol"}},
				Hops: []*operation.GetElements{
					{Direction: operation.DirectionOutgoing},
					{Direction: operation.DirectionOutgoing, View: &operation.View{Groups: []string{"Knows"}}},
				},
			}},
			want: []graph.Element{
				knows("alice", "bob", true, 1),
				knows("alice", "dave", false, 1),
			},
		},
		{
			ops: []operation.Operation{
				&operation.GetAdjacentIDs{
					Seeds:     []graph.ElementID{graph.EntityID{Vertex: "carol"}},
					Direction: operation.DirectionOutgoing,
				},
				&operation.Path{Hops: []*operation.GetElements{
					{Direction: operation.DirectionOutgoing},
					{SeedMatching: operation.SeedEqual},
				}},
			},
			want: []graph.Element{person("bob", 2)},
		},
	}

	for i, spec := range specs {
		got := s.elements(c, spec.ops...)
		c.Assert(got, check.DeepEquals, spec.want, check.Commentf("spec %d", i))
	}
}
