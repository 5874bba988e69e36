package remote

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/mycok/uGraph/codec"
	"github.com/mycok/uGraph/federated"
	"github.com/mycok/uGraph/graph"
	"github.com/mycok/uGraph/operation"
	"github.com/mycok/uGraph/store"
	"github.com/mycok/uGraph/store/remote/proto"
)

// defaultBatchSize is the number of elements or ids sent per frame.
const defaultBatchSize = 128

var _ proto.GraphServer = (*Server)(nil)

// UserResolver returns the user a call runs as. claimed is the user sent by
// the client; ctx carries the metadata and peer of the call. An error
// rejects the call with an error matching ErrUserRejected.
type UserResolver func(ctx context.Context, claimed store.User) (store.User, error)

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithUserResolver sets the resolver used to authenticate callers.
func WithUserResolver(resolve UserResolver) ServerOption {
	return func(s *Server) { s.resolveUser = resolve }
}

// Server exposes a store.Executor over gRPC.
//
// Unless a UserResolver is configured, chains run as the user claimed by the
// client, auths included. Such a server must only be reachable by trusted
// callers.
type Server struct {
	// Any concrete type that satisfies the store.Executor interface.
	ex          store.Executor
	logger      *logrus.Entry
	batchSize   int
	resolveUser UserResolver
	proto.UnimplementedGraphServer
}

// NewServer returns a server that runs chains against ex. If logger is nil
// an output-discarding logger is used.
func NewServer(ex store.Executor, logger *logrus.Entry, opts ...ServerOption) *Server {
	if logger == nil {
		logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	s := &Server{
		ex:        ex,
		logger:    logger.WithField("graph_id", ex.GraphID()),
		batchSize: defaultBatchSize,
		resolveUser: func(_ context.Context, claimed store.User) (store.User, error) {
			return claimed, nil
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Register adds the graph service to srv.
func (s *Server) Register(srv grpc.ServiceRegistrar) {
	proto.RegisterGraphServer(srv, s)
}

// Describe returns the id, schema and traits of the served graph.
func (s *Server) Describe(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	data, err := s.ex.Schema().ToJSON()
	if err != nil {
		trailer, stErr := toStatus(err)
		_ = grpc.SetTrailer(ctx, trailer)

		return nil, stErr
	}

	traits := s.ex.Traits().List()
	names := make([]string, 0, len(traits))
	for _, t := range traits {
		names = append(names, string(t))
	}

	return encodePayload(&DescribeResponse{GraphID: s.ex.GraphID(), Schema: data, Traits: names})
}

// Execute decodes and runs a chain, then streams a header frame followed by
// the chain output.
func (s *Server) Execute(msg *wrapperspb.BytesValue, stream proto.Graph_ExecuteServer) error {
	var req ExecuteRequest
	err := decodePayload(msg, &req)
	if err == nil {
		err = s.execute(&req, stream)
	}

	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"user": req.User.ID,
			"err":  err,
		}).Debug("remote execution failed")

		trailer, stErr := toStatus(err)
		stream.SetTrailer(trailer)

		return stErr
	}

	return nil
}

func (s *Server) execute(req *ExecuteRequest, stream proto.Graph_ExecuteServer) error {
	user, err := s.resolveUser(stream.Context(), req.User)
	if err != nil {
		return &UserRejectedError{UserID: req.User.ID, Err: err}
	}

	chain, err := operation.UnmarshalChain(req.Chain, s.ex.Schema())
	if err != nil {
		return err
	}

	res, err := s.ex.Execute(stream.Context(), chain, user)

	header := &Header{Output: chain.OutputType()}

	var (
		rejected *store.RejectedElementsError
		partial  *federated.PartialFailureError
	)

	switch {
	case errors.As(err, &partial):
		header.Rejected = rejectedRecords(partial.Rejected)
		for _, f := range partial.Failures {
			kind, _ := kindOf(f.Err)
			header.Failures = append(header.Failures, FailureRecord{
				GraphID: f.GraphID,
				Kind:    kind,
				Message: f.Err.Error(),
			})
		}
	case errors.As(err, &rejected):
		header.Rejected = rejectedRecords(rejected.Rejected)
	case err != nil:
		return err
	}

	if err = sendFrame(stream, &Frame{Header: header}); err != nil {
		closeValue(res)

		return err
	}

	return s.send(stream, header.Output, res)
}

func (s *Server) send(stream proto.Graph_ExecuteServer, output operation.IOType, res interface{}) error {
	switch output {
	case operation.Elements:
		it, ok := res.(graph.ElementIterator)
		if !ok {
			return unexpectedResult(output, res)
		}

		return s.sendBatches(stream, it, func(f *Frame) int {
			f.Elements = append(f.Elements, operation.ToWireElement(it.Element()))

			return len(f.Elements)
		})
	case operation.ElementIDs:
		it, ok := res.(graph.ElementIDIterator)
		if !ok {
			if elements, isElements := res.(graph.ElementIterator); isElements {
				it, ok = graph.AsElementIDs(elements), true
			}
		}

		if !ok {
			return unexpectedResult(output, res)
		}

		return s.sendBatches(stream, it, func(f *Frame) int {
			f.IDs = append(f.IDs, operation.ToWireID(it.ElementID()))

			return len(f.IDs)
		})
	case operation.Count:
		n, ok := res.(int64)
		if !ok {
			return unexpectedResult(output, res)
		}

		return sendFrame(stream, &Frame{Count: &n})
	case operation.Bool:
		b, ok := res.(bool)
		if !ok {
			return unexpectedResult(output, res)
		}

		return sendFrame(stream, &Frame{Bool: &b})
	case operation.SplitPoints:
		splits, ok := res.(codec.SplitPoints)
		if !ok {
			return unexpectedResult(output, res)
		}

		return sendFrame(stream, &Frame{SplitPoints: splits})
	case operation.GraphIDs:
		ids, ok := res.([]string)
		if !ok && res != nil {
			return unexpectedResult(output, res)
		}

		return sendFrame(stream, &Frame{GraphIDs: ids})
	default:
		closeValue(res)

		return nil
	}
}

// sendBatches drains it, letting add append the current item to a frame and
// return the frame size.
func (s *Server) sendBatches(stream proto.Graph_ExecuteServer, it graph.Iterator, add func(*Frame) int) error {
	defer func() { _ = it.Close() }()

	frame := new(Frame)
	for it.Next() {
		if add(frame) < s.batchSize {
			continue
		}

		if err := sendFrame(stream, frame); err != nil {
			return err
		}

		frame = new(Frame)
	}

	// Items read before a failure are still delivered.
	if len(frame.Elements)+len(frame.IDs) != 0 {
		if err := sendFrame(stream, frame); err != nil {
			return err
		}
	}

	if err := it.Error(); err != nil {
		return err
	}

	return it.Close()
}

func sendFrame(stream proto.Graph_ExecuteServer, f *Frame) error {
	msg, err := encodePayload(f)
	if err != nil {
		return err
	}

	return stream.Send(msg)
}

func rejectedRecords(rejected []store.RejectedElement) []RejectedRecord {
	out := make([]RejectedRecord, 0, len(rejected))
	for _, r := range rejected {
		kind, _ := kindOf(r.Err)
		rec := RejectedRecord{Kind: kind, Message: r.Err.Error()}
		if r.Element != nil {
			rec.Element = operation.ToWireElement(r.Element)
		}

		out = append(out, rec)
	}

	return out
}

func unexpectedResult(output operation.IOType, res interface{}) error {
	closeValue(res)

	return fmt.Errorf("%w: %T for output %s", store.ErrUnexpectedInput, res, output)
}

// closeValue closes v when it is an iterator.
func closeValue(v interface{}) {
	if it, ok := v.(graph.Iterator); ok {
		_ = it.Close()
	}
}
