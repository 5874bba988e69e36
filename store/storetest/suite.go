package storetest

import (
	"context"

	check "gopkg.in/check.v1"

	"github.com/mycok/uGraph/graph"
	"github.com/mycok/uGraph/operation"
	"github.com/mycok/uGraph/schema"
	"github.com/mycok/uGraph/store"
)

// BaseSuite defines a set of re-usable tests that can be executed against
// any store.Executor serving a graph built from Schema. The store must
// advertise every filtering and aggregation trait.
type BaseSuite struct {
	st store.Executor
}

// SetStore configures the test-suite to run all tests against st.
func (s *BaseSuite) SetStore(st store.Executor) {
	s.st = st
}

// Schema returns the schema the tested store must be created with.
func Schema() *schema.Schema {
	return &schema.Schema{
		Vertex: "name",
		Types: map[string]schema.TypeDefinition{
			"name":   {Class: schema.ClassString},
			"count":  {Class: schema.ClassInt64, Aggregate: "sum"},
			"tags":   {Class: schema.ClassStringSet, Aggregate: "union"},
			"weight": {Class: schema.ClassFloat64, Aggregate: "max"},
			"day":    {Class: schema.ClassString},
		},
		Entities: map[string]schema.ElementDefinition{
			"Person": {Properties: map[string]string{"count": "count", "tags": "tags"}},
			"Visit": {
				Properties: map[string]string{"count": "count", "day": "day"},
				GroupBy:    []string{"day"},
			},
		},
		Edges: map[string]schema.ElementDefinition{
			"Knows":   {Properties: map[string]string{"count": "count", "weight": "weight"}, Bidirectional: true},
			"Follows": {Properties: map[string]string{"count": "count"}},
		},
	}
}

var tester = store.User{ID: "tester"}

func (s *BaseSuite) execute(c *check.C, ops ...operation.Operation) (interface{}, error) {
	chain, err := operation.NewChain(ops...)
	c.Assert(err, check.IsNil)

	return s.st.Execute(context.TODO(), chain, tester)
}

func (s *BaseSuite) add(c *check.C, elements ...graph.Element) {
	_, err := s.execute(c, &operation.AddElements{Elements: elements})
	c.Assert(err, check.IsNil)
}

func (s *BaseSuite) elements(c *check.C, ops ...operation.Operation) []graph.Element {
	out, err := s.execute(c, ops...)
	c.Assert(err, check.IsNil)

	it, ok := out.(graph.ElementIterator)
	c.Assert(ok, check.Equals, true, check.Commentf("expected an element iterator, got %T", out))

	elements, err := graph.CollectElements(it)
	c.Assert(err, check.IsNil)

	return elements
}

func (s *BaseSuite) ids(c *check.C, ops ...operation.Operation) []graph.ElementID {
	out, err := s.execute(c, ops...)
	c.Assert(err, check.IsNil)

	it, ok := out.(graph.ElementIDIterator)
	c.Assert(ok, check.Equals, true, check.Commentf("expected an id iterator, got %T", out))

	ids, err := graph.CollectElementIDs(it)
	c.Assert(err, check.IsNil)

	return ids
}

func person(name string, count int64, tags ...string) *graph.Entity {
	props := graph.Properties{"count": count}
	if len(tags) != 0 {
		props["tags"] = graph.NewStringSet(tags...)
	}

	return graph.NewEntity("Person", name, props)
}

func knows(src, dest string, directed bool, count int64) *graph.Edge {
	return graph.NewEdge("Knows", src, dest, directed, graph.Properties{"count": count})
}

func visit(name, day string, count int64) *graph.Entity {
	return graph.NewEntity("Visit", name, graph.Properties{"count": count, "day": day})
}

// addNeighbourhood stores alice along with edges in every direction:
// alice->bob, carol->alice and the undirected alice-dave.
func (s *BaseSuite) addNeighbourhood(c *check.C) {
	s.add(c,
		person("alice", 1),
		knows("alice", "bob", true, 1),
		knows("carol", "alice", true, 1),
		knows("dave", "alice", false, 1),
	)
}
