package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	check "gopkg.in/check.v1"
)

var _ = check.Suite(new(GroupTestSuite))

func Test(t *testing.T) {
	check.TestingT(t)
}

type GroupTestSuite struct{}

func (s *GroupTestSuite) TestGroupTerminatesAfterASingleError(c *check.C) {
	grp := NewGroup(nil,
		testService{id: "graph"},
		testService{id: "metrics", err: errors.New("address already in use")},
	)

	err := grp.Run(context.TODO())
	c.Assert(err, check.ErrorMatches, "(?ms).*metrics: address already in use.*")
	c.Assert(err, check.Not(check.ErrorMatches), "(?ms).*graph:.*")
}

func (s *GroupTestSuite) TestGroupCollectsEveryError(c *check.C) {
	grp := NewGroup(nil,
		testService{id: "graph", err: errors.New("listener closed")},
		testService{id: "metrics", err: errors.New("address already in use")},
	)

	err := grp.Run(context.TODO())
	c.Assert(err, check.ErrorMatches, "(?ms).*graph: listener closed.*")
	c.Assert(err, check.ErrorMatches, "(?ms).*metrics: address already in use.*")
}

func (s *GroupTestSuite) TestGroupTerminatesFromContext(c *check.C) {
	grp := NewGroup(nil)
	grp.Add(testService{id: "graph"})
	grp.Add(testService{id: "metrics"})
	c.Assert(grp.Len(), check.Equals, 2)

	ctx, cancelFn := context.WithTimeout(context.TODO(), 100*time.Millisecond)
	defer cancelFn()

	c.Assert(grp.Run(ctx), check.IsNil)
}

func (s *GroupTestSuite) TestServiceLifecycleIsLogged(c *check.C) {
	logger, hook := test.NewNullLogger()
	grp := NewGroup(logger.WithField("app", "ugraph"),
		testService{id: "graph"},
		testService{id: "metrics", err: errors.New("address already in use")},
	)

	c.Assert(grp.Run(context.TODO()), check.NotNil)

	// Every service logs its start plus either a stop or a failure.
	entries := hook.AllEntries()
	c.Assert(entries, check.HasLen, 4)

	failures := 0
	for _, entry := range entries {
		c.Assert(entry.Data["app"], check.Equals, "ugraph")
		c.Assert(entry.Data["service"], check.Not(check.IsNil))

		if entry.Level == logrus.ErrorLevel {
			failures++
			c.Assert(entry.Data["service"], check.Equals, "metrics")
			c.Assert(entry.Message, check.Equals, "service failed")
		}
	}

	c.Assert(failures, check.Equals, 1)
}

type testService struct {
	id  string
	err error
}

func (s testService) Name() string { return s.id }

func (s testService) Run(ctx context.Context) error {
	if s.err != nil {
		return s.err
	}

	<-ctx.Done()

	return nil
}
