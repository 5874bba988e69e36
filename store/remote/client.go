package remote

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/mycok/uGraph/codec"
	"github.com/mycok/uGraph/federated"
	"github.com/mycok/uGraph/graph"
	"github.com/mycok/uGraph/operation"
	"github.com/mycok/uGraph/schema"
	"github.com/mycok/uGraph/store"
	"github.com/mycok/uGraph/store/remote/proto"
	"github.com/mycok/uGraph/store/trait"
)

// Static and compile-time check to ensure Client implements store.Executor
// interface.
var _ store.Executor = (*Client)(nil)

// Client runs operation chains against a graph exposed by a remote Server.
type Client struct {
	rpc     proto.GraphClient
	closer  io.Closer
	graphID string
	schema  *schema.Schema
	traits  trait.Set
}

// Dial connects to the server at addr and returns a client for the graph it
// serves. Closing the client closes the connection.
func Dial(ctx context.Context, addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)

	conn, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("remote: dial %q: %w", addr, err)
	}

	c, err := NewClient(ctx, proto.NewGraphClient(conn))
	if err != nil {
		_ = conn.Close()

		return nil, err
	}

	c.closer = conn

	return c, nil
}

// NewClient describes the graph served through rpc and returns a client
// for it.
func NewClient(ctx context.Context, rpc proto.GraphClient) (*Client, error) {
	var (
		resp    DescribeResponse
		trailer metadata.MD
	)

	msg, err := rpc.Describe(ctx, &emptypb.Empty{}, grpc.Trailer(&trailer))
	if err != nil {
		return nil, fromStatus(err, trailer)
	} else if err = decodePayload(msg, &resp); err != nil {
		return nil, fmt.Errorf("remote: %w", err)
	}

	sch, err := schema.FromJSON(resp.Schema)
	if err != nil {
		return nil, fmt.Errorf("remote: graph %q: %w", resp.GraphID, err)
	}

	traits := make([]trait.Trait, 0, len(resp.Traits))
	for _, name := range resp.Traits {
		traits = append(traits, trait.Trait(name))
	}

	return &Client{
		rpc:     rpc,
		graphID: resp.GraphID,
		schema:  sch,
		traits:  trait.NewSet(traits...),
	}, nil
}

// GraphID returns the id of the remote graph.
func (c *Client) GraphID() string { return c.graphID }

// Schema returns the schema of the remote graph.
func (c *Client) Schema() *schema.Schema { return c.schema }

// Traits returns the traits advertised by the remote graph.
func (c *Client) Traits() trait.Set { return c.traits }

// Close releases the connection when the client owns it.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}

	return c.closer.Close()
}

// Execute sends chain to the server. Element and id outputs are streamed
// lazily; closing them cancels the call.
func (c *Client) Execute(ctx context.Context, chain *operation.Chain, user store.User) (interface{}, error) {
	if chain == nil {
		return nil, store.ErrNilChain
	}

	data, err := operation.MarshalChain(chain)
	if err != nil {
		return nil, err
	}

	req, err := encodePayload(&ExecuteRequest{Chain: data, User: user})
	if err != nil {
		return nil, fmt.Errorf("remote: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	stream, err := c.rpc.Execute(ctx, req)
	if err != nil {
		cancel()

		return nil, fromStatus(err, nil)
	}

	r := &frameReader{stream: stream, cancel: cancel}

	first, ok := r.recv()
	if !ok {
		if r.lastErr == nil {
			r.lastErr = fmt.Errorf("remote: graph %q: stream ended before header", c.graphID)
		}

		return nil, r.lastErr
	} else if first.Header == nil {
		r.close()

		return nil, fmt.Errorf("remote: graph %q: missing header frame", c.graphID)
	}

	res, err := c.result(r, first.Header.Output)
	if err != nil {
		return nil, err
	}

	return res, c.headerError(first.Header, res)
}

// result decodes the output that follows the header.
func (c *Client) result(r *frameReader, output operation.IOType) (interface{}, error) {
	switch output {
	case operation.Elements:
		return &elementIterator{frameReader: r, schema: c.schema}, nil
	case operation.ElementIDs:
		return &idIterator{frameReader: r, schema: c.schema}, nil
	case operation.None:
		r.close()

		return nil, nil
	}

	defer r.close()

	frame, ok := r.recv()
	if !ok {
		if r.lastErr != nil {
			return nil, r.lastErr
		}

		return nil, fmt.Errorf("remote: graph %q: missing %s result", c.graphID, output)
	}

	switch output {
	case operation.Count:
		if frame.Count == nil {
			return int64(0), nil
		}

		return *frame.Count, nil
	case operation.Bool:
		return frame.Bool != nil && *frame.Bool, nil
	case operation.SplitPoints:
		if frame.SplitPoints == nil {
			return codec.SplitPoints{}, nil
		}

		return frame.SplitPoints, nil
	case operation.GraphIDs:
		return frame.GraphIDs, nil
	default:
		return nil, fmt.Errorf("remote: graph %q: unexpected output %s", c.graphID, output)
	}
}

// headerError rebuilds the rejections and partial failures reported in the
// header.
func (c *Client) headerError(h *Header, res interface{}) error {
	var rejected []store.RejectedElement
	for _, rec := range h.Rejected {
		el, err := rec.Element.Element(c.schema)
		if err != nil {
			el = nil
		}

		rejected = append(rejected, store.RejectedElement{Element: el, Err: recordError(rec.Kind, rec.Message)})
	}

	if len(h.Failures) != 0 {
		failures := make([]federated.GraphFailure, 0, len(h.Failures))
		for _, f := range h.Failures {
			failures = append(failures, federated.GraphFailure{GraphID: f.GraphID, Err: recordError(f.Kind, f.Message)})
		}

		return &federated.PartialFailureError{Result: res, Failures: failures, Rejected: rejected}
	} else if len(rejected) != 0 {
		return &store.RejectedElementsError{GraphID: c.graphID, Rejected: rejected}
	}

	return nil
}

// frameReader receives the frames of an Execute stream.
type frameReader struct {
	stream  proto.Graph_ExecuteClient
	cancel  context.CancelFunc
	lastErr error
	done    bool
	closed  bool
}

func (r *frameReader) recv() (*Frame, bool) {
	if r.done {
		return nil, false
	}

	msg, err := r.stream.Recv()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			r.lastErr = r.statusError(err)
		}

		r.close()

		return nil, false
	}

	frame := new(Frame)
	if err = decodePayload(msg, frame); err != nil {
		r.lastErr = fmt.Errorf("remote: %w", err)
		r.close()

		return nil, false
	}

	return frame, true
}

func (r *frameReader) statusError(err error) error {
	return fromStatus(err, r.stream.Trailer())
}

func (r *frameReader) close() {
	r.done = true
	r.cancel()
}

// Error returns the last error encountered by the iterator.
func (r *frameReader) Error() error { return r.lastErr }

// Close cancels the call. It may be called more than once.
func (r *frameReader) Close() error {
	r.closed = true
	r.close()

	return nil
}

type elementIterator struct {
	*frameReader
	schema  *schema.Schema
	buf     []operation.WireElement
	current graph.Element
}

func (i *elementIterator) Next() bool {
	if i.closed || i.lastErr != nil {
		return false
	}

	for len(i.buf) == 0 {
		frame, ok := i.recv()
		if !ok {
			return false
		}

		i.buf = frame.Elements
	}

	el, err := i.buf[0].Element(i.schema)
	i.buf = i.buf[1:]
	if err != nil {
		i.lastErr = err
		i.close()

		return false
	}

	i.current = el

	return true
}

func (i *elementIterator) Element() graph.Element { return i.current }

type idIterator struct {
	*frameReader
	schema  *schema.Schema
	buf     []operation.WireID
	current graph.ElementID
}

func (i *idIterator) Next() bool {
	if i.closed || i.lastErr != nil {
		return false
	}

	for len(i.buf) == 0 {
		frame, ok := i.recv()
		if !ok {
			return false
		}

		i.buf = frame.IDs
	}

	id, err := i.buf[0].ElementID(i.schema)
	i.buf = i.buf[1:]
	if err != nil {
		i.lastErr = err
		i.close()

		return false
	}

	i.current = id

	return true
}

func (i *idIterator) ElementID() graph.ElementID { return i.current }
