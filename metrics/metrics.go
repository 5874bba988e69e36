/*
	metrics package defines the prometheus collectors exported by stores and
	federated stores. Collectors are registered with the supplied registerer;
	a nil registerer leaves them unregistered so they can still be updated
	and inspected in tests. All methods are safe to call on a nil receiver.
*/

package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ugraph"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var delegateDurationBuckets = prometheus.ExponentialBuckets(0.0005, 2, 16) // ~0.5ms to 16s

// Store tracks operations executed by a store.
type Store struct {
	operations *prometheus.CounterVec
}

// NewStore creates the store collectors and registers them with reg.
func NewStore(reg prometheus.Registerer) (*Store, error) {
	ops, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Count of operations executed by a store, by graph, kind and outcome",
	}, []string{"graph_id", "kind", "outcome"}))
	if err != nil {
		return nil, err
	}

	return &Store{operations: ops}, nil
}

// ObserveOperation counts one executed operation.
func (m *Store) ObserveOperation(graphID, kind string, err error) {
	if m == nil {
		return
	}

	m.operations.WithLabelValues(graphID, kind, outcome(err)).Inc()
}

// Operations exposes the underlying counter.
func (m *Store) Operations() *prometheus.CounterVec {
	if m == nil {
		return nil
	}

	return m.operations
}

// Federated tracks calls made by a federated store to its delegates.
type Federated struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	graphs   prometheus.Gauge
}

// NewFederated creates the federation collectors and registers them with
// reg.
func NewFederated(reg prometheus.Registerer) (*Federated, error) {
	calls, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "federated",
		Name:      "delegate_calls_total",
		Help:      "Count of delegate executions, by graph and outcome",
	}, []string{"graph_id", "outcome"}))
	if err != nil {
		return nil, err
	}

	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "federated",
		Name:      "delegate_call_duration_seconds",
		Help:      "Time taken by a delegate to start returning results",
		Buckets:   delegateDurationBuckets,
	}, []string{"graph_id"}))
	if err != nil {
		return nil, err
	}

	graphs, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "federated",
		Name:      "graphs",
		Help:      "Number of graphs registered with the federated store",
	}))
	if err != nil {
		return nil, err
	}

	return &Federated{calls: calls, duration: duration, graphs: graphs}, nil
}

// ObserveDelegateCall records the outcome and latency of one delegate call.
func (m *Federated) ObserveDelegateCall(graphID string, took time.Duration, err error) {
	if m == nil {
		return
	}

	m.calls.WithLabelValues(graphID, outcome(err)).Inc()
	m.duration.WithLabelValues(graphID).Observe(took.Seconds())
}

// SetGraphs records the number of registered graphs.
func (m *Federated) SetGraphs(n int) {
	if m == nil {
		return
	}

	m.graphs.Set(float64(n))
}

// DelegateCalls exposes the underlying counter.
func (m *Federated) DelegateCalls() *prometheus.CounterVec {
	if m == nil {
		return nil
	}

	return m.calls
}

// Graphs exposes the underlying gauge.
func (m *Federated) Graphs() prometheus.Gauge {
	if m == nil {
		return nil
	}

	return m.graphs
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}

	return OutcomeSuccess
}

// register adds c to reg. When an identical collector is already registered
// the existing one is returned instead.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if reg == nil {
		return c, nil
	}

	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return c, fmt.Errorf("metrics: %w", err)
		}

		existing, ok := are.ExistingCollector.(C)
		if !ok {
			return c, fmt.Errorf("metrics: collector already registered with a different type")
		}

		return existing, nil
	}

	return c, nil
}
