package remote_test

import (
	"context"
	"errors"
	"io"

	"github.com/golang/mock/gomock"
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"
	check "gopkg.in/check.v1"

	"github.com/mycok/uGraph/graph"
	"github.com/mycok/uGraph/operation"
	"github.com/mycok/uGraph/store"
	"github.com/mycok/uGraph/store/mocks"
	"github.com/mycok/uGraph/store/remote"
	remotemocks "github.com/mycok/uGraph/store/remote/mocks"
	"github.com/mycok/uGraph/store/storetest"
	"github.com/mycok/uGraph/store/trait"
)

var _ = check.Suite(new(ClientTestSuite))
var _ = check.Suite(new(UserResolverTestSuite))

type ClientTestSuite struct{}

func payload(c *check.C, v interface{}) *wrapperspb.BytesValue {
	data, err := msgpack.Marshal(v)
	c.Assert(err, check.IsNil)

	return wrapperspb.Bytes(data)
}

func (s *ClientTestSuite) describe(c *check.C) *wrapperspb.BytesValue {
	data, err := storetest.Schema().ToJSON()
	c.Assert(err, check.IsNil)

	return payload(c, &remote.DescribeResponse{GraphID: "mock", Schema: data, Traits: []string{string(trait.Ordered)}})
}

func (s *ClientTestSuite) TestMalformedDescribePayload(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	rpcClient := remotemocks.NewMockGraphClient(ctrl)
	rpcClient.EXPECT().Describe(gomock.Any(), gomock.Any(), gomock.Any()).Return(wrapperspb.Bytes([]byte{0xc1}), nil)

	_, err := remote.NewClient(context.TODO(), rpcClient)
	c.Assert(err, check.ErrorMatches, "remote: decode .*")
}

func (s *ClientTestSuite) TestElementFrames(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	rpcClient := remotemocks.NewMockGraphClient(ctrl)
	rpcClient.EXPECT().Describe(gomock.Any(), gomock.Any(), gomock.Any()).Return(s.describe(c), nil)

	alice := graph.NewEntity("Person", "alice", graph.Properties{"count": int64(1)})
	stream := remotemocks.NewMockGraph_ExecuteClient(ctrl)
	gomock.InOrder(
		stream.EXPECT().Recv().Return(payload(c, &remote.Frame{Header: &remote.Header{Output: operation.Elements}}), nil),
		stream.EXPECT().Recv().Return(payload(c, &remote.Frame{Elements: []operation.WireElement{operation.ToWireElement(alice)}}), nil),
		stream.EXPECT().Recv().Return(nil, io.EOF),
	)
	rpcClient.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(stream, nil)

	client, err := remote.NewClient(context.TODO(), rpcClient)
	c.Assert(err, check.IsNil)
	c.Assert(client.GraphID(), check.Equals, "mock")
	c.Assert(client.Traits().Has(trait.Ordered), check.Equals, true)

	out, err := client.Execute(context.TODO(), operation.MustChain(&operation.GetAllElements{}), tester)
	c.Assert(err, check.IsNil)

	elements, err := graph.CollectElements(out.(graph.ElementIterator))
	c.Assert(err, check.IsNil)
	c.Assert(elements, check.DeepEquals, []graph.Element{alice})
}

func (s *ClientTestSuite) TestMalformedFrame(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	rpcClient := remotemocks.NewMockGraphClient(ctrl)
	rpcClient.EXPECT().Describe(gomock.Any(), gomock.Any(), gomock.Any()).Return(s.describe(c), nil)

	stream := remotemocks.NewMockGraph_ExecuteClient(ctrl)
	gomock.InOrder(
		stream.EXPECT().Recv().Return(payload(c, &remote.Frame{Header: &remote.Header{Output: operation.Elements}}), nil),
		stream.EXPECT().Recv().Return(wrapperspb.Bytes([]byte{0xc1}), nil),
	)
	rpcClient.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(stream, nil)

	client, err := remote.NewClient(context.TODO(), rpcClient)
	c.Assert(err, check.IsNil)

	out, err := client.Execute(context.TODO(), operation.MustChain(&operation.GetAllElements{}), tester)
	c.Assert(err, check.IsNil)

	_, err = graph.CollectElements(out.(graph.ElementIterator))
	c.Assert(err, check.ErrorMatches, "remote: decode .*")
}

type UserResolverTestSuite struct{}

// tokenResolver maps the api key sent in the call metadata to a user and
// ignores the user claimed by the client.
func tokenResolver(users map[string]store.User) remote.UserResolver {
	return func(ctx context.Context, _ store.User) (store.User, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		if keys := md.Get("x-api-key"); len(keys) != 0 {
			if user, ok := users[keys[0]]; ok {
				return user, nil
			}
		}

		return store.User{}, errors.New("unknown api key")
	}
}

func (s *UserResolverTestSuite) TestResolvedUserRunsTheChain(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	resolved := store.User{ID: "svc", Auths: []string{"secret"}}
	ex := mocks.NewMockExecutor(ctrl)
	ex.EXPECT().GraphID().Return("mock").AnyTimes()
	ex.EXPECT().Schema().Return(storetest.Schema()).AnyTimes()
	ex.EXPECT().Traits().Return(trait.NewSet()).AnyTimes()
	ex.EXPECT().Execute(gomock.Any(), gomock.Any(), resolved).Return(int64(7), nil)

	srv := newBufServer(ex, remote.WithUserResolver(tokenResolver(map[string]store.User{"k1": resolved})))
	defer srv.stop()

	client := srv.dial(c)
	defer func() { _ = client.Close() }()

	ctx := metadata.AppendToOutgoingContext(context.TODO(), "x-api-key", "k1")
	chain := operation.MustChain(&operation.GetAllElements{}, &operation.CountElements{})

	// The claimed auths are not trusted.
	out, err := client.Execute(ctx, chain, store.User{ID: "mallory", Auths: []string{"everything"}})
	c.Assert(err, check.IsNil)
	c.Assert(out, check.Equals, int64(7))
}

func (s *UserResolverTestSuite) TestRejectedUser(c *check.C) {
	ctrl := gomock.NewController(c)
	defer ctrl.Finish()

	ex := mocks.NewMockExecutor(ctrl)
	ex.EXPECT().GraphID().Return("mock").AnyTimes()
	ex.EXPECT().Schema().Return(storetest.Schema()).AnyTimes()
	ex.EXPECT().Traits().Return(trait.NewSet()).AnyTimes()

	srv := newBufServer(ex, remote.WithUserResolver(tokenResolver(nil)))
	defer srv.stop()

	client := srv.dial(c)
	defer func() { _ = client.Close() }()

	_, err := client.Execute(context.TODO(), operation.MustChain(&operation.GetAllElements{}), tester)
	c.Assert(errors.Is(err, remote.ErrUserRejected), check.Equals, true, check.Commentf("%v", err))

	var remoteErr *remote.Error
	c.Assert(errors.As(err, &remoteErr), check.Equals, true)
	c.Assert(remoteErr.Code, check.Equals, codes.Unauthenticated)
}
