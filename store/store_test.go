package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	check "gopkg.in/check.v1"

	"github.com/mycok/uGraph/graph"
	"github.com/mycok/uGraph/metrics"
	"github.com/mycok/uGraph/operation"
	"github.com/mycok/uGraph/schema"
	"github.com/mycok/uGraph/store/trait"
)

var _ = check.Suite(new(StoreTestSuite))

func Test(t *testing.T) {
	// Run all gocheck test-suites.
	check.TestingT(t)
}

func testSchema() *schema.Schema {
	return &schema.Schema{
		Vertex: "vertex",
		Types: map[string]schema.TypeDefinition{
			"vertex": {Class: schema.ClassString},
			"count":  {Class: schema.ClassInt64, Aggregate: "sum"},
		},
		Entities: map[string]schema.ElementDefinition{
			"Person": {Properties: map[string]string{"count": "count"}},
		},
		Edges: map[string]schema.ElementDefinition{
			"Knows": {Properties: map[string]string{"count": "count"}},
		},
	}
}

// sliceBackend is a minimal handler set that keeps elements in a slice.
type sliceBackend struct {
	mu       sync.Mutex
	elements []graph.Element
	writes   int
}

func (b *sliceBackend) registrations() []Registration {
	return []Registration{
		{
			Kind:   operation.KindAddElements,
			Access: AccessWrite,
			Handler: HandlerFunc(func(_ context.Context, op operation.Operation, input interface{}, ec *ExecContext) (interface{}, error) {
				add := op.(*operation.AddElements)

				elements := add.Elements
				if it, ok := input.(graph.ElementIterator); ok {
					var err error
					if elements, err = graph.CollectElements(it); err != nil {
						return nil, err
					}
				}

				b.mu.Lock()
				defer b.mu.Unlock()

				b.writes++
				for _, el := range elements {
					if el.GetGroup() == "" {
						ec.Reject(el, errors.New("missing group"))
						continue
					}

					b.elements = append(b.elements, el)
				}

				return nil, nil
			}),
		},
		{
			Kind:    operation.KindGetAllElements,
			Access:  AccessRead,
			Handler: HandlerFunc(b.all),
		},
		{
			Kind:    operation.KindGetElements,
			Access:  AccessRead,
			Handler: HandlerFunc(b.all),
		},
	}
}

func (b *sliceBackend) all(context.Context, operation.Operation, interface{}, *ExecContext) (interface{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return graph.NewElementIterator(append([]graph.Element(nil), b.elements...)...), nil
}

type StoreTestSuite struct {
	backend *sliceBackend
	store   *Store
}

func (s *StoreTestSuite) SetUpTest(c *check.C) {
	s.backend = new(sliceBackend)
	s.store = s.newStore(c, nil)
}

func (s *StoreTestSuite) newStore(c *check.C, props Properties, extra ...Registration) *Store {
	st, err := New(Config{
		GraphID:    "g1",
		Schema:     testSchema(),
		Properties: props,
		Traits:     trait.NewSet(trait.PostAggregationFiltering),
		Handlers:   append(s.backend.registrations(), extra...),
	})
	c.Assert(err, check.IsNil)

	return st
}

func (s *StoreTestSuite) people(names ...string) []graph.Element {
	var out []graph.Element
	for _, name := range names {
		out = append(out, graph.NewEntity("Person", name, graph.Properties{"count": int64(1)}))
	}

	return out
}

func (s *StoreTestSuite) TestConfigValidation(c *check.C) {
	_, err := New(Config{})
	c.Assert(err, check.ErrorMatches, "(?ms).*graph id not provided.*")
	c.Assert(err, check.ErrorMatches, "(?ms).*schema not provided.*")
	c.Assert(err, check.ErrorMatches, "(?ms).*no handler for required operation AddElements.*")

	bad := testSchema()
	bad.Vertex = "missing"
	_, err = New(Config{GraphID: "g1", Schema: bad, Handlers: s.backend.registrations()})
	c.Assert(errors.Is(err, schema.ErrInvalidSchema), check.Equals, true)

	_, err = New(Config{
		GraphID:    "g1",
		Schema:     testSchema(),
		Handlers:   s.backend.registrations(),
		Properties: Properties{PropReadOnly: "perhaps"},
	})
	c.Assert(err, check.ErrorMatches, ".*ugraph.store.readonly.*")
}

func (s *StoreTestSuite) TestAddThenCount(c *check.C) {
	_, err := s.store.Execute(context.TODO(), operation.MustChain(
		&operation.AddElements{Elements: s.people("alice", "bob", "carol")},
	), UnknownUser)
	c.Assert(err, check.IsNil)

	res, err := s.store.Execute(context.TODO(), operation.MustChain(
		&operation.GetAllElements{},
		&operation.CountElements{},
	), UnknownUser)
	c.Assert(err, check.IsNil)
	c.Assert(res, check.Equals, int64(3))
}

func (s *StoreTestSuite) TestLimitKeepsElementStream(c *check.C) {
	s.backend.elements = s.people("alice", "bob", "carol")

	res, err := s.store.Execute(context.TODO(), operation.MustChain(
		&operation.GetAllElements{},
		&operation.Limit{N: 2},
	), UnknownUser)
	c.Assert(err, check.IsNil)

	it, ok := res.(graph.ElementIterator)
	c.Assert(ok, check.Equals, true)

	elements, err := graph.CollectElements(it)
	c.Assert(err, check.IsNil)
	c.Assert(elements, check.DeepEquals, s.people("alice", "bob"))
}

func (s *StoreTestSuite) TestLimitOnIDStream(c *check.C) {
	res, err := handleLimit(context.TODO(), &operation.Limit{N: 1}, graph.NewElementIDIterator(
		graph.EntityID{Vertex: "a"}, graph.EntityID{Vertex: "b"},
	), nil)
	c.Assert(err, check.IsNil)

	ids, err := graph.CollectElementIDs(res.(graph.ElementIDIterator))
	c.Assert(err, check.IsNil)
	c.Assert(ids, check.DeepEquals, []graph.ElementID{graph.EntityID{Vertex: "a"}})

	_, err = handleLimit(context.TODO(), &operation.Limit{N: 1}, int64(3), nil)
	c.Assert(errors.Is(err, ErrUnexpectedInput), check.Equals, true)
}

func (s *StoreTestSuite) TestExists(c *check.C) {
	chain := operation.MustChain(&operation.GetAllElements{}, &operation.Exists{})

	res, err := s.store.Execute(context.TODO(), chain, UnknownUser)
	c.Assert(err, check.IsNil)
	c.Assert(res, check.Equals, false)

	s.backend.elements = s.people("alice")

	res, err = s.store.Execute(context.TODO(), chain, UnknownUser)
	c.Assert(err, check.IsNil)
	c.Assert(res, check.Equals, true)
}

func (s *StoreTestSuite) TestUnhandledOperationRunsNothing(c *check.C) {
	_, err := s.store.Execute(context.TODO(), operation.MustChain(
		&operation.AddElements{Elements: s.people("alice")},
		&operation.GenerateSplitPoints{Group: "Person", NumSplits: 1, SampleRate: 1},
	), UnknownUser)

	var unhandled *UnhandledOperationError
	c.Assert(errors.As(err, &unhandled), check.Equals, true)
	c.Assert(unhandled.Kind, check.Equals, operation.KindGenerateSplitPoints)
	c.Assert(errors.Is(err, ErrUnhandledOperation), check.Equals, true)
	c.Assert(s.backend.writes, check.Equals, 0)
}

func (s *StoreTestSuite) TestFallbackHandler(c *check.C) {
	st, err := New(Config{
		GraphID:  "g1",
		Schema:   testSchema(),
		Handlers: s.backend.registrations(),
		Fallback: HandlerFunc(func(context.Context, operation.Operation, interface{}, *ExecContext) (interface{}, error) {
			return int64(42), nil
		}),
	})
	c.Assert(err, check.IsNil)

	res, err := st.Execute(context.TODO(), operation.MustChain(&operation.GetAllGraphIDs{}), UnknownUser)
	c.Assert(err, check.IsNil)
	c.Assert(res, check.Equals, int64(42))
}

func (s *StoreTestSuite) TestMissingTraits(c *check.C) {
	_, err := s.store.Execute(context.TODO(), operation.MustChain(
		&operation.GetAllElements{View: &operation.View{
			PreAggregationFilters: []operation.Filter{{Property: "count", Predicate: operation.Gt, Value: int64(1)}},
			Summarise:             true,
		}},
	), UnknownUser)

	var unsupported *UnsupportedOperationError
	c.Assert(errors.As(err, &unsupported), check.Equals, true)
	c.Assert(unsupported.GraphID, check.Equals, "g1")
	c.Assert(unsupported.MissingTraits, check.DeepEquals, []trait.Trait{
		trait.PreAggregationFiltering, trait.QueryAggregation,
	})
	c.Assert(errors.Is(err, ErrUnsupportedOperation), check.Equals, true)
}

func (s *StoreTestSuite) TestReadOnlyStoreRejectsWrites(c *check.C) {
	st := s.newStore(c, Properties{PropReadOnly: "true"})
	c.Assert(st.ReadOnly(), check.Equals, true)

	_, err := st.Execute(context.TODO(), operation.MustChain(
		&operation.AddElements{Elements: s.people("alice")},
	), UnknownUser)

	var unsupported *UnsupportedOperationError
	c.Assert(errors.As(err, &unsupported), check.Equals, true)
	c.Assert(unsupported.ReadOnly, check.Equals, true)
	c.Assert(s.backend.writes, check.Equals, 0)
}

type trackingIterator struct {
	graph.ElementIterator
	closed bool
}

func (i *trackingIterator) Close() error {
	i.closed = true

	return i.ElementIterator.Close()
}

func (s *StoreTestSuite) TestHandlerFailureClosesInput(c *check.C) {
	tracked := &trackingIterator{ElementIterator: graph.NewElementIterator(s.people("alice")...)}
	boom := errors.New("boom")

	st := s.newStore(c, nil,
		Registration{
			Kind:   operation.KindGetAllElements,
			Access: AccessRead,
			Handler: HandlerFunc(func(context.Context, operation.Operation, interface{}, *ExecContext) (interface{}, error) {
				return tracked, nil
			}),
		},
		Registration{
			Kind:   operation.KindCount,
			Access: AccessRead,
			Handler: HandlerFunc(func(context.Context, operation.Operation, interface{}, *ExecContext) (interface{}, error) {
				return nil, boom
			}),
		},
	)

	_, err := st.Execute(context.TODO(), operation.MustChain(
		&operation.GetAllElements{},
		&operation.CountElements{},
	), UnknownUser)

	var opErr *OperationError
	c.Assert(errors.As(err, &opErr), check.Equals, true)
	c.Assert(opErr.Index, check.Equals, 1)
	c.Assert(opErr.Kind, check.Equals, operation.KindCount)
	c.Assert(errors.Is(err, boom), check.Equals, true)
	c.Assert(tracked.closed, check.Equals, true)
}

func (s *StoreTestSuite) TestNoneInputClosesPreviousOutput(c *check.C) {
	tracked := &trackingIterator{ElementIterator: graph.NewElementIterator(s.people("alice")...)}

	st := s.newStore(c, nil, Registration{
		Kind:   operation.KindGetElements,
		Access: AccessRead,
		Handler: HandlerFunc(func(context.Context, operation.Operation, interface{}, *ExecContext) (interface{}, error) {
			return tracked, nil
		}),
	})

	res, err := st.Execute(context.TODO(), operation.MustChain(
		&operation.GetElements{Seeds: []graph.ElementID{graph.EntityID{Vertex: "alice"}}},
		&operation.GetAllElements{},
		&operation.CountElements{},
	), UnknownUser)
	c.Assert(err, check.IsNil)
	c.Assert(res, check.Equals, int64(0))
	c.Assert(tracked.closed, check.Equals, true)
}

func (s *StoreTestSuite) TestRejectedElementsAreReported(c *check.C) {
	elements := append(s.people("alice"), graph.NewEntity("", "ghost", nil))

	res, err := s.store.Execute(context.TODO(), operation.MustChain(
		&operation.AddElements{Elements: elements, SkipInvalid: true},
		&operation.GetAllElements{},
		&operation.CountElements{},
	), UnknownUser)

	var rejected *RejectedElementsError
	c.Assert(errors.As(err, &rejected), check.Equals, true)
	c.Assert(rejected.Rejected, check.HasLen, 1)
	c.Assert(rejected.Rejected[0].Element.(*graph.Entity).Vertex, check.Equals, "ghost")
	c.Assert(res, check.Equals, int64(1))
}

func (s *StoreTestSuite) TestMetrics(c *check.C) {
	m, err := metrics.NewStore(nil)
	c.Assert(err, check.IsNil)

	st, err := New(Config{
		GraphID:  "g1",
		Schema:   testSchema(),
		Handlers: s.backend.registrations(),
		Metrics:  m,
	})
	c.Assert(err, check.IsNil)

	_, err = st.Execute(context.TODO(), operation.MustChain(
		&operation.GetAllElements{},
		&operation.CountElements{},
	), UnknownUser)
	c.Assert(err, check.IsNil)

	c.Assert(testutil.ToFloat64(m.Operations().WithLabelValues("g1", "Count", metrics.OutcomeSuccess)), check.Equals, 1.0)
	c.Assert(testutil.ToFloat64(m.Operations().WithLabelValues("g1", "GetAllElements", metrics.OutcomeSuccess)), check.Equals, 1.0)
}

func (s *StoreTestSuite) TestNilChain(c *check.C) {
	_, err := s.store.Execute(context.TODO(), nil, UnknownUser)
	c.Assert(err, check.Equals, ErrNilChain)
}

func (s *StoreTestSuite) TestFactoryRegistry(c *check.C) {
	reg := NewFactoryRegistry()
	reg.Register("slice", FactoryFunc(func(graphID string, sch *schema.Schema, props Properties) (Executor, error) {
		return New(Config{GraphID: graphID, Schema: sch, Properties: props, Handlers: s.backend.registrations()})
	}))
	c.Assert(reg.Types(), check.DeepEquals, []string{"slice"})

	ex, err := reg.Build("g2", testSchema(), Properties{PropStoreType: "slice"})
	c.Assert(err, check.IsNil)
	c.Assert(ex.GraphID(), check.Equals, "g2")

	_, err = reg.Build("g3", testSchema(), Properties{PropStoreType: "nope"})
	c.Assert(errors.Is(err, ErrUnknownStoreType), check.Equals, true)
}

func (s *StoreTestSuite) TestUserAuths(c *check.C) {
	u := User{ID: "u", Auths: []string{"public", "team-a"}}

	c.Assert(u.HasAnyAuth(), check.Equals, true)
	c.Assert(u.HasAnyAuth("team-b", "team-a"), check.Equals, true)
	c.Assert(u.HasAnyAuth("team-b"), check.Equals, false)
	c.Assert(UnknownUser.HasAnyAuth("public"), check.Equals, false)
}

func (s *StoreTestSuite) TestMergeProperties(c *check.C) {
	parent := Properties{PropStoreType: "kv", PropKVURI: "in-memory://"}
	merged := MergeProperties(parent, Properties{PropKVURI: "bolt:///tmp/x.db"})

	c.Assert(merged, check.DeepEquals, Properties{PropStoreType: "kv", PropKVURI: "bolt:///tmp/x.db"})
	c.Assert(parent[PropKVURI], check.Equals, "in-memory://")
	c.Assert(merged.Get("missing", "def"), check.Equals, "def")
}
