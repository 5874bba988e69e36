package metrics_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	check "gopkg.in/check.v1"

	"github.com/mycok/uGraph/cmd/ugraph/service/metrics"
	ugmetrics "github.com/mycok/uGraph/metrics"
)

var _ = check.Suite(new(MetricsServiceTestSuite))

func Test(t *testing.T) {
	check.TestingT(t)
}

type MetricsServiceTestSuite struct{}

func (s *MetricsServiceTestSuite) TestConfigValidation(c *check.C) {
	_, err := metrics.New(metrics.Config{})
	c.Assert(err, check.ErrorMatches, "(?ms).*metrics gatherer not provided.*")
	c.Assert(err, check.ErrorMatches, "(?ms).*listen address not provided.*")
}

func (s *MetricsServiceTestSuite) TestExposesFederationMetrics(c *check.C) {
	reg := prometheus.NewRegistry()
	fed, err := ugmetrics.NewFederated(reg)
	c.Assert(err, check.IsNil)
	fed.SetGraphs(3)

	svc, err := metrics.New(metrics.Config{Gatherer: reg, ListenAddr: ":0"})
	c.Assert(err, check.IsNil)

	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	c.Assert(rec.Code, check.Equals, http.StatusOK)

	body, err := io.ReadAll(rec.Body)
	c.Assert(err, check.IsNil)
	c.Assert(strings.Contains(string(body), "ugraph_federated_graphs 3"), check.Equals, true, check.Commentf("%s", body))
}

func (s *MetricsServiceTestSuite) TestRunStopsOnCancel(c *check.C) {
	svc, err := metrics.New(metrics.Config{Gatherer: prometheus.NewRegistry(), ListenAddr: "127.0.0.1:0"})
	c.Assert(err, check.IsNil)

	ctx, cancelFn := context.WithTimeout(context.TODO(), 100*time.Millisecond)
	defer cancelFn()

	c.Assert(svc.Run(ctx), check.IsNil)
}
