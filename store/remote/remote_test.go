package remote_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang/mock/gomock"
	"google.golang.org/grpc/codes"
	check "gopkg.in/check.v1"

	"github.com/mycok/uGraph/bulk"
	"github.com/mycok/uGraph/codec"
	"github.com/mycok/uGraph/federated"
	"github.com/mycok/uGraph/graph"
	"github.com/mycok/uGraph/operation"
	"github.com/mycok/uGraph/schema"
	"github.com/mycok/uGraph/store"
	"github.com/mycok/uGraph/store/kv"
	"github.com/mycok/uGraph/store/mocks"
	"github.com/mycok/uGraph/store/remote"
	"github.com/mycok/uGraph/store/storetest"
	"github.com/mycok/uGraph/store/trait"
)

var _ = check.Suite(new(RemoteStoreTestSuite))
var _ = check.Suite(new(RemoteErrorTestSuite))
var _ = check.Suite(new(RemoteFederatedTestSuite))

var tester = store.User{ID: "tester"}

func person(name string, count int64) graph.Element {
	return graph.NewEntity("Person", name, graph.Properties{"count": count})
}

func execute(c *check.C, ex store.Executor, ops ...operation.Operation) (interface{}, error) {
	chain, err := operation.NewChain(ops...)
	c.Assert(err, check.IsNil)

	return ex.Execute(context.TODO(), chain, tester)
}

type RemoteStoreTestSuite struct {
	st     *store.Store
	srv    *bufServer
	client *remote.Client
}

func (s *RemoteStoreTestSuite) SetUpTest(c *check.C) {
	st, err := kv.New(kv.Config{GraphID: "remote-graph", Schema: storetest.Schema()})
	c.Assert(err, check.IsNil)

	s.st = st
	s.srv = newBufServer(st)
	s.client = s.srv.dial(c)
}

func (s *RemoteStoreTestSuite) TearDownTest(c *check.C) {
	_ = s.client.Close()
	s.srv.stop()
	c.Assert(s.st.Close(), check.IsNil)
}

func (s *RemoteStoreTestSuite) add(c *check.C, elements ...graph.Element) {
	_, err := execute(c, s.client, &operation.AddElements{Elements: elements})
	c.Assert(err, check.IsNil)
}

func (s *RemoteStoreTestSuite) TestDescribe(c *check.C) {
	c.Assert(s.client.GraphID(), check.Equals, "remote-graph")
	c.Assert(s.client.Schema().HasGroup("Knows"), check.Equals, true)
	c.Assert(s.client.Traits().Has(trait.Ordered), check.Equals, true)
	c.Assert(s.client.Traits().Has(trait.QueryAggregation), check.Equals, true)
}

func (s *RemoteStoreTestSuite) TestElementsRoundTrip(c *check.C) {
	s.add(c, person("alice", 1), person("alice", 1), graph.NewEdge("Knows", "alice", "bob", true, graph.Properties{"count": int64(3)}))

	out, err := execute(c, s.client, &operation.GetAllElements{})
	c.Assert(err, check.IsNil)

	elements, err := graph.CollectElements(out.(graph.ElementIterator))
	c.Assert(err, check.IsNil)
	c.Assert(elements, check.HasLen, 2)

	for _, el := range elements {
		switch e := el.(type) {
		case *graph.Entity:
			c.Assert(e.Vertex, check.Equals, "alice")
			c.Assert(e.Properties["count"], check.Equals, int64(2))
		case *graph.Edge:
			c.Assert(e.Source, check.Equals, "alice")
			c.Assert(e.Destination, check.Equals, "bob")
			c.Assert(e.Directed, check.Equals, true)
			c.Assert(e.Properties["count"], check.Equals, int64(3))
		default:
			c.Fatalf("unexpected element %T", el)
		}
	}
}

func (s *RemoteStoreTestSuite) TestAdjacentIDs(c *check.C) {
	s.add(c, graph.NewEdge("Follows", "alice", "bob", true, graph.Properties{"count": int64(1)}))

	out, err := execute(c, s.client, &operation.GetAdjacentIDs{
		Seeds: []graph.ElementID{graph.EntityID{Vertex: "alice"}},
	})
	c.Assert(err, check.IsNil)

	ids, err := graph.CollectElementIDs(out.(graph.ElementIDIterator))
	c.Assert(err, check.IsNil)
	c.Assert(ids, check.DeepEquals, []graph.ElementID{graph.EntityID{Vertex: "bob"}})
}

func (s *RemoteStoreTestSuite) TestScalarOutputs(c *check.C) {
	s.add(c, person("alice", 1), person("bob", 1), person("carol", 1), person("dave", 1))

	out, err := execute(c, s.client, &operation.GetAllElements{}, &operation.CountElements{})
	c.Assert(err, check.IsNil)
	c.Assert(out, check.Equals, int64(4))

	out, err = execute(c, s.client,
		&operation.GetElements{Seeds: []graph.ElementID{graph.EntityID{Vertex: "carol"}}},
		&operation.Exists{},
	)
	c.Assert(err, check.IsNil)
	c.Assert(out, check.Equals, true)

	out, err = execute(c, s.client,
		&operation.GetElements{Seeds: []graph.ElementID{graph.EntityID{Vertex: "mallory"}}},
		&operation.Exists{},
	)
	c.Assert(err, check.IsNil)
	c.Assert(out, check.Equals, false)

	out, err = execute(c, s.client, &operation.GenerateSplitPoints{Group: "Person", NumSplits: 2, SampleRate: 1})
	c.Assert(err, check.IsNil)
	_, ok := out.(codec.SplitPoints)
	c.Assert(ok, check.Equals, true, check.Commentf("unexpected output %T", out))
}

func (s *RemoteStoreTestSuite) TestResultsSpanMultipleFrames(c *check.C) {
	var elements []graph.Element
	for i := 0; i < 300; i++ {
		elements = append(elements, person(fmt.Sprintf("person-%03d", i), 1))
	}
	s.add(c, elements...)

	out, err := execute(c, s.client, &operation.GetAllElements{})
	c.Assert(err, check.IsNil)

	got, err := graph.CollectElements(out.(graph.ElementIterator))
	c.Assert(err, check.IsNil)
	c.Assert(got, check.HasLen, 300)
}

func (s *RemoteStoreTestSuite) TestEarlyClose(c *check.C) {
	s.add(c, person("alice", 1), person("bob", 1), person("carol", 1))

	out, err := execute(c, s.client, &operation.GetAllElements{})
	c.Assert(err, check.IsNil)

	it := out.(graph.ElementIterator)
	c.Assert(it.Next(), check.Equals, true)
	c.Assert(it.Close(), check.IsNil)
	c.Assert(it.Next(), check.Equals, false)
	c.Assert(it.Close(), check.IsNil)
}

func (s *RemoteStoreTestSuite) TestConversionErrors(c *check.C) {
	invalid := graph.NewEntity("Unknown", "x", nil)

	_, err := execute(c, s.client, &operation.AddElements{Elements: []graph.Element{invalid}})
	c.Assert(errors.Is(err, codec.ErrElementConversion), check.Equals, true, check.Commentf("%v", err))

	var remoteErr *remote.Error
	c.Assert(errors.As(err, &remoteErr), check.Equals, true)
	c.Assert(remoteErr.Code, check.Equals, codes.InvalidArgument)

	_, err = execute(c, s.client, &operation.AddElements{
		Elements:    []graph.Element{person("alice", 1), invalid},
		SkipInvalid: true,
	})

	var rejected *store.RejectedElementsError
	c.Assert(errors.As(err, &rejected), check.Equals, true, check.Commentf("%v", err))
	c.Assert(rejected.Rejected, check.HasLen, 1)
	c.Assert(rejected.Rejected[0].Element.GetGroup(), check.Equals, "Unknown")
	c.Assert(errors.Is(rejected.Rejected[0].Err, codec.ErrElementConversion), check.Equals, true)
}

func (s *RemoteStoreTestSuite) TestLocalOnlyOperations(c *check.C) {
	sink := bulk.RecordSinkFunc(func(context.Context, int, codec.Record) error { return nil })

	_, err := execute(c, s.client, &operation.GetAllElements{}, &operation.ExportRecords{Sink: sink})
	c.Assert(errors.Is(err, operation.ErrNotSerialisable), check.Equals, true)
}

type RemoteErrorTestSuite struct{}

func (s *RemoteErrorTestSuite) mockExecutor(ctrl *gomock.Controller) *mocks.MockExecutor {
	ex := mocks.NewMockExecutor(ctrl)
	ex.EXPECT().GraphID().Return("mock").AnyTimes()
	ex.EXPECT().Schema().Return(storetest.Schema()).AnyTimes()
	ex.EXPECT().Traits().Return(trait.NewSet()).AnyTimes()

	return ex
}

func (s *RemoteErrorTestSuite) TestErrorKindsSurvive(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	ex := s.mockExecutor(ctrl)
	ex.EXPECT().Execute(
		gomock.Any(),
		gomock.Any(),
		gomock.Any(),
	).Return(nil, &federated.UnknownGraphError{GraphID: "missing"})

	srv := newBufServer(ex)
	defer srv.stop()

	client := srv.dial(c)
	defer func() { _ = client.Close() }()

	_, err := execute(c, client, &operation.GetAllElements{})
	c.Assert(errors.Is(err, federated.ErrUnknownGraph), check.Equals, true, check.Commentf("%v", err))

	var remoteErr *remote.Error
	c.Assert(errors.As(err, &remoteErr), check.Equals, true)
	c.Assert(remoteErr.Code, check.Equals, codes.NotFound)
	c.Assert(remoteErr.Kind, check.Equals, remote.KindUnknownGraph)
}

func (s *RemoteErrorTestSuite) TestPartialFailureSurvives(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	ex := s.mockExecutor(ctrl)
	ex.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(3), &federated.PartialFailureError{
		Result: int64(3),
		Failures: []federated.GraphFailure{
			{GraphID: "g2", Err: &federated.AuthorizationError{UserID: "tester", GraphIDs: []string{"g2"}}},
		},
	})

	srv := newBufServer(ex)
	defer srv.stop()

	client := srv.dial(c)
	defer func() { _ = client.Close() }()

	out, err := execute(c, client, &operation.GetAllElements{}, &operation.CountElements{})
	c.Assert(out, check.Equals, int64(3))

	var partial *federated.PartialFailureError
	c.Assert(errors.As(err, &partial), check.Equals, true, check.Commentf("%v", err))
	c.Assert(partial.Result, check.Equals, int64(3))
	c.Assert(partial.Failures, check.HasLen, 1)
	c.Assert(partial.Failures[0].GraphID, check.Equals, "g2")
	c.Assert(errors.Is(partial.Failures[0].Err, federated.ErrAuthorization), check.Equals, true)
}

func (s *RemoteErrorTestSuite) TestStreamFailure(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	ex := s.mockExecutor(ctrl)
	ex.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).Return(
		&failingIterator{elements: []graph.Element{person("alice", 1)}, err: errors.New("disk on fire")}, nil,
	)

	srv := newBufServer(ex)
	defer srv.stop()

	client := srv.dial(c)
	defer func() { _ = client.Close() }()

	out, err := execute(c, client, &operation.GetAllElements{})
	c.Assert(err, check.IsNil)

	elements, err := graph.CollectElements(out.(graph.ElementIterator))
	c.Assert(elements, check.HasLen, 1)

	var remoteErr *remote.Error
	c.Assert(errors.As(err, &remoteErr), check.Equals, true, check.Commentf("%v", err))
	c.Assert(remoteErr.Code, check.Equals, codes.Internal)
	c.Assert(remoteErr.Message, check.Matches, ".*disk on fire.*")
}

type RemoteFederatedTestSuite struct {
	fed    *federated.Store
	srv    *bufServer
	client *remote.Client
}

func (s *RemoteFederatedTestSuite) SetUpTest(c *check.C) {
	factories := store.NewFactoryRegistry()
	factories.Register(kv.StoreType, kv.NewFactory(nil, nil))

	fed, err := federated.New(federated.Config{GraphID: "federated", Factories: factories})
	c.Assert(err, check.IsNil)

	s.fed = fed
	s.srv = newBufServer(fed)
	s.client = s.srv.dial(c)
}

func (s *RemoteFederatedTestSuite) TearDownTest(c *check.C) {
	_ = s.client.Close()
	s.srv.stop()
	c.Assert(s.fed.Close(), check.IsNil)
}

func graphSchema() *schema.Schema {
	return &schema.Schema{
		Vertex: "name",
		Types: map[string]schema.TypeDefinition{
			"name":  {Class: schema.ClassString},
			"count": {Class: schema.ClassInt64, Aggregate: "sum"},
		},
		Entities: map[string]schema.ElementDefinition{
			"Person": {Properties: map[string]string{"count": "count"}},
		},
	}
}

func (s *RemoteFederatedTestSuite) TestAdminOperations(c *check.C) {
	out, err := execute(c, s.client, &operation.AddGraph{
		GraphID:    "g1",
		Schema:     graphSchema(),
		Properties: map[string]string{store.PropStoreType: kv.StoreType},
	})
	c.Assert(err, check.IsNil)
	c.Assert(out, check.IsNil)

	out, err = execute(c, s.client, &operation.GetAllGraphIDs{})
	c.Assert(err, check.IsNil)
	c.Assert(out, check.DeepEquals, []string{"g1"})

	_, err = execute(c, s.client, &operation.AddGraph{
		GraphID:    "g1",
		Schema:     graphSchema(),
		Properties: map[string]string{store.PropStoreType: kv.StoreType},
	})
	c.Assert(errors.Is(err, federated.ErrGraphAlreadyExists), check.Equals, true, check.Commentf("%v", err))

	out, err = execute(c, s.client, &operation.RemoveGraph{GraphID: "g1"})
	c.Assert(err, check.IsNil)
	c.Assert(out, check.Equals, true)
}

func (s *RemoteFederatedTestSuite) TestRemoteDelegate(c *check.C) {
	err := s.fed.AddGraph(&operation.AddGraph{
		GraphID:    "g1",
		Schema:     graphSchema(),
		Properties: map[string]string{store.PropStoreType: kv.StoreType},
	}, tester)
	c.Assert(err, check.IsNil)

	_, err = s.fed.Execute(context.TODO(), operation.MustChain(&operation.AddElements{
		Elements: []graph.Element{person("alice", 1), person("bob", 1)},
	}), tester)
	c.Assert(err, check.IsNil)

	// A second federation reaches the first one through a remote delegate.
	factories := store.NewFactoryRegistry()
	factories.Register(remote.StoreType, remote.NewFactory(s.srv.dialer()))

	outer, err := federated.New(federated.Config{GraphID: "outer", Factories: factories})
	c.Assert(err, check.IsNil)
	defer func() { _ = outer.Close() }()

	err = outer.AddGraph(&operation.AddGraph{
		GraphID: "upstream",
		Schema:  graphSchema(),
		Properties: map[string]string{
			store.PropStoreType:  remote.StoreType,
			store.PropRemoteAddr: "bufnet",
		},
	}, tester)
	c.Assert(err, check.IsNil)

	out, err := outer.Execute(context.TODO(), operation.MustChain(&operation.GetAllElements{}, &operation.CountElements{}), tester)
	c.Assert(err, check.IsNil)
	c.Assert(out, check.Equals, int64(2))

	_, err = outer.Execute(context.TODO(), operation.MustChain(&operation.GetAllElements{}).WithGraphIDs("missing"), tester)
	c.Assert(errors.Is(err, federated.ErrUnknownGraph), check.Equals, true)
}

func (s *RemoteFederatedTestSuite) TestUnknownGraphOverTheWire(c *check.C) {
	chain := operation.MustChain(&operation.GetAllElements{}).WithGraphIDs("missing")
	_, err := s.client.Execute(context.TODO(), chain, tester)
	c.Assert(errors.Is(err, federated.ErrUnknownGraph), check.Equals, true, check.Commentf("%v", err))
}

// failingIterator yields its elements and then fails.
type failingIterator struct {
	elements []graph.Element
	err      error
	current  graph.Element
}

func (i *failingIterator) Next() bool {
	if len(i.elements) == 0 {
		return false
	}

	i.current, i.elements = i.elements[0], i.elements[1:]

	return true
}

func (i *failingIterator) Error() error {
	if len(i.elements) == 0 {
		return i.err
	}

	return nil
}

func (i *failingIterator) Close() error { return nil }

func (i *failingIterator) Element() graph.Element { return i.current }
