package storetest

import (
	"context"
	"fmt"
	"sync"

	check "gopkg.in/check.v1"

	"github.com/mycok/uGraph/codec"
	"github.com/mycok/uGraph/graph"
	"github.com/mycok/uGraph/operation"
)

// TestGroupByKeepsSeparateElements verifies that elements differing in their
// group-by values are stored separately and merged by a summarising view.
func (s *BaseSuite) TestGroupByKeepsSeparateElements(c *check.C) {
	s.add(c, visit("alice", "mon", 1), visit("alice", "tue", 2), visit("alice", "mon", 4), visit("bob", "mon", 1))

	got := s.elements(c, &operation.GetAllElements{})
	c.Assert(got, check.DeepEquals, []graph.Element{
		visit("alice", "mon", 5),
		visit("alice", "tue", 2),
		visit("bob", "mon", 1),
	})

	got = s.elements(c, &operation.GetAllElements{View: &operation.View{Summarise: true}})
	c.Assert(got, check.DeepEquals, []graph.Element{
		graph.NewEntity("Visit", "alice", graph.Properties{"count": int64(7)}),
		graph.NewEntity("Visit", "bob", graph.Properties{"count": int64(1)}),
	})
}

// TestViewFilters verifies the order in which the filters of a view are
// applied with respect to summarisation.
func (s *BaseSuite) TestViewFilters(c *check.C) {
	s.add(c, visit("alice", "mon", 5), visit("alice", "tue", 2), person("alice", 9))

	specs := []struct {
		view *operation.View
		want []graph.Element
	}{
		{
			view: &operation.View{
				Groups:                []string{"Visit"},
				PreAggregationFilters: []operation.Filter{{Property: "day", Predicate: operation.Eq, Value: "mon"}},
				Summarise:             true,
			},
			want: []graph.Element{graph.NewEntity("Visit", "alice", graph.Properties{"count": int64(5)})},
		},
		{
			view: &operation.View{
				Groups:                 []string{"Visit"},
				PostAggregationFilters: []operation.Filter{{Property: "count", Predicate: operation.Gt, Value: int64(6)}},
				Summarise:              true,
			},
			want: []graph.Element{graph.NewEntity("Visit", "alice", graph.Properties{"count": int64(7)})},
		},
		{
			view: &operation.View{
				PostAggregationFilters: []operation.Filter{{Property: "count", Predicate: operation.Gt, Value: int64(6)}},
			},
			want: []graph.Element{person("alice", 9)},
		},
		{
			view: &operation.View{Groups: []string{"Person"}},
			want: []graph.Element{person("alice", 9)},
		},
	}

	for i, spec := range specs {
		got := s.elements(c, &operation.GetElements{
			Seeds: []graph.ElementID{graph.EntityID{Vertex: "alice"}},
			View:  spec.view,
		})
		c.Assert(got, check.DeepEquals, spec.want, check.Commentf("spec %d", i))
	}
}

// TestViewProjection verifies that a view can select or drop the properties
// returned for a group.
func (s *BaseSuite) TestViewProjection(c *check.C) {
	s.add(c, person("alice", 9, "x"), knows("alice", "bob", true, 1))

	specs := []struct {
		view *operation.View
		want []graph.Element
	}{
		{
			view: &operation.View{Properties: map[string][]string{"Person": {"count"}}},
			want: []graph.Element{
				graph.NewEntity("Person", "alice", graph.Properties{"count": int64(9)}),
				knows("alice", "bob", true, 1),
			},
		},
		{
			view: &operation.View{ExcludeProperties: map[string][]string{"Person": {"count"}}},
			want: []graph.Element{
				graph.NewEntity("Person", "alice", graph.Properties{"tags": graph.NewStringSet("x")}),
				knows("alice", "bob", true, 1),
			},
		},
	}

	for i, spec := range specs {
		got := s.elements(c, &operation.GetAllElements{View: spec.view})
		c.Assert(got, check.DeepEquals, spec.want, check.Commentf("spec %d", i))
	}
}

// TestCountLimitExists verifies the generic operations on query results.
func (s *BaseSuite) TestCountLimitExists(c *check.C) {
	out, err := s.execute(c, &operation.GetAllElements{}, &operation.Exists{})
	c.Assert(err, check.IsNil)
	c.Assert(out, check.Equals, false)

	s.add(c, person("alice", 1), person("bob", 1), person("carol", 1))

	out, err = s.execute(c, &operation.GetAllElements{}, &operation.CountElements{})
	c.Assert(err, check.IsNil)
	c.Assert(out, check.Equals, int64(3))

	out, err = s.execute(c, &operation.GetAllElements{}, &operation.Limit{N: 2}, &operation.CountElements{})
	c.Assert(err, check.IsNil)
	c.Assert(out, check.Equals, int64(2))

	got := s.elements(c, &operation.GetAllElements{}, &operation.Limit{N: 1})
	c.Assert(got, check.DeepEquals, []graph.Element{person("alice", 1)})

	out, err = s.execute(c, &operation.GetAllElements{}, &operation.Exists{})
	c.Assert(err, check.IsNil)
	c.Assert(out, check.Equals, true)
}

// TestEarlyClose verifies that a partially consumed result can be closed
// more than once.
func (s *BaseSuite) TestEarlyClose(c *check.C) {
	s.add(c, person("alice", 1), person("bob", 1))

	out, err := s.execute(c, &operation.GetAllElements{})
	c.Assert(err, check.IsNil)

	it := out.(graph.ElementIterator)
	c.Assert(it.Next(), check.Equals, true)
	c.Assert(it.Close(), check.IsNil)
	c.Assert(it.Close(), check.IsNil)
	c.Assert(it.Next(), check.Equals, false)
	c.Assert(it.Error(), check.IsNil)
}

// TestGenerateSplitPoints verifies that split points are sampled from the
// stored elements of a single group.
func (s *BaseSuite) TestGenerateSplitPoints(c *check.C) {
	var elements []graph.Element
	for i := 0; i < 10; i++ {
		elements = append(elements, person(fmt.Sprintf("p%02d", i), 1))
	}

	elements = append(elements, knows("p00", "p09", true, 1))
	s.add(c, elements...)

	out, err := s.execute(c, &operation.GenerateSplitPoints{Group: "Person", NumSplits: 2, SampleRate: 1})
	c.Assert(err, check.IsNil)

	splits, ok := out.(codec.SplitPoints)
	c.Assert(ok, check.Equals, true, check.Commentf("unexpected output %T", out))
	c.Assert(splits.NumPartitions(), check.Equals, 2)

	partitions := make(map[int]int)
	for _, key := range splits.Keys() {
		partitions[splits.Partition(key)]++
	}

	c.Assert(partitions, check.DeepEquals, map[int]int{0: 1, 1: 1})
}

type recordCollector struct {
	mu      sync.Mutex
	records []codec.Record
}

func (rc *recordCollector) Write(_ context.Context, _ int, rec codec.Record) error {
	rc.mu.Lock()
	rc.records = append(rc.records, rec)
	rc.mu.Unlock()

	return nil
}

// TestExportRecords verifies that queried elements can be exported as
// records.
func (s *BaseSuite) TestExportRecords(c *check.C) {
	s.add(c, person("alice", 1), person("bob", 1), knows("alice", "bob", true, 1))

	sink := new(recordCollector)
	out, err := s.execute(c,
		&operation.GetAllElements{},
		&operation.ExportRecords{Sink: sink, Workers: 2},
	)
	c.Assert(err, check.IsNil)

	// The bidirectional edge produces two records.
	c.Assert(out, check.Equals, int64(4))
	c.Assert(sink.records, check.HasLen, 4)
}
