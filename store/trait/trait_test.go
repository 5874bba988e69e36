package trait

import (
	"testing"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(new(TraitTestSuite))

func Test(t *testing.T) {
	// Run all gocheck test-suites.
	check.TestingT(t)
}

type TraitTestSuite struct{}

func (s *TraitTestSuite) TestSetOperations(c *check.C) {
	a := NewSet(Ordered, StoreAggregation, QueryAggregation)
	b := NewSet(Ordered, QueryAggregation, PostAggregationFiltering)

	c.Assert(a.Has(Ordered), check.Equals, true)
	c.Assert(a.Has(PostTransformationFiltering), check.Equals, false)
	c.Assert(a.Intersect(b).List(), check.DeepEquals, []Trait{Ordered, QueryAggregation})
	c.Assert(a.Union(b).Len(), check.Equals, 4)
	c.Assert(a.Missing(b), check.DeepEquals, []Trait{PostAggregationFiltering})
	c.Assert(a.Missing(NewSet()), check.HasLen, 0)
	c.Assert(NewSet(QueryAggregation, Ordered).String(), check.Equals, "[ORDERED QUERY_AGGREGATION]")
}

func (s *TraitTestSuite) TestZeroSetIsEmpty(c *check.C) {
	var zero Set

	c.Assert(zero.Len(), check.Equals, 0)
	c.Assert(zero.Has(Ordered), check.Equals, false)
	c.Assert(zero.Intersect(NewSet(Ordered)).Len(), check.Equals, 0)
}
