package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	check "gopkg.in/check.v1"
)

var _ = check.Suite(new(MetricsTestSuite))

func Test(t *testing.T) {
	// Run all gocheck test-suites.
	check.TestingT(t)
}

type MetricsTestSuite struct{}

func (s *MetricsTestSuite) TestStoreOperations(c *check.C) {
	m, err := NewStore(prometheus.NewRegistry())
	c.Assert(err, check.IsNil)

	m.ObserveOperation("g1", "GetElements", nil)
	m.ObserveOperation("g1", "GetElements", nil)
	m.ObserveOperation("g1", "GetElements", errors.New("boom"))

	c.Assert(testutil.ToFloat64(m.Operations().WithLabelValues("g1", "GetElements", OutcomeSuccess)), check.Equals, 2.0)
	c.Assert(testutil.ToFloat64(m.Operations().WithLabelValues("g1", "GetElements", OutcomeFailure)), check.Equals, 1.0)
}

func (s *MetricsTestSuite) TestRegisteringTwiceReusesCollectors(c *check.C) {
	reg := prometheus.NewRegistry()

	first, err := NewFederated(reg)
	c.Assert(err, check.IsNil)
	second, err := NewFederated(reg)
	c.Assert(err, check.IsNil)

	first.ObserveDelegateCall("g1", time.Millisecond, nil)
	second.ObserveDelegateCall("g1", time.Millisecond, nil)

	c.Assert(testutil.ToFloat64(first.DelegateCalls().WithLabelValues("g1", OutcomeSuccess)), check.Equals, 2.0)
}

func (s *MetricsTestSuite) TestNilCollectorsAreNoOps(c *check.C) {
	var (
		sm *Store
		fm *Federated
	)

	sm.ObserveOperation("g1", "Count", nil)
	fm.ObserveDelegateCall("g1", time.Second, nil)
	fm.SetGraphs(3)

	c.Assert(sm.Operations(), check.IsNil)
	c.Assert(fm.Graphs(), check.IsNil)
}

func (s *MetricsTestSuite) TestUnregisteredCollectors(c *check.C) {
	m, err := NewFederated(nil)
	c.Assert(err, check.IsNil)

	m.SetGraphs(2)
	c.Assert(testutil.ToFloat64(m.Graphs()), check.Equals, 2.0)
}
