package remote

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/mycok/uGraph/codec"
	"github.com/mycok/uGraph/operation"
	"github.com/mycok/uGraph/store"
)

//go:generate protoc --go-grpc_out=. --go-grpc_opt=paths=source_relative proto/graph.proto
//go:generate mockgen -package mocks -destination mocks/mock_graph.go github.com/mycok/uGraph/store/remote/proto GraphClient,Graph_ExecuteClient

// The messages below travel as msgpack documents inside the bytes payloads
// of the Graph service.

// DescribeResponse describes the graph served by a server.
type DescribeResponse struct {
	GraphID string   `msgpack:"graphId"`
	Schema  []byte   `msgpack:"schema"`
	Traits  []string `msgpack:"traits"`
}

// ExecuteRequest carries a serialised operation chain.
type ExecuteRequest struct {
	Chain []byte     `msgpack:"chain"`
	User  store.User `msgpack:"user"`
}

// Header is the first frame of every Execute stream.
type Header struct {
	Output   operation.IOType `msgpack:"output"`
	Rejected []RejectedRecord `msgpack:"rejected,omitempty"`
	Failures []FailureRecord  `msgpack:"failures,omitempty"`
}

// RejectedRecord describes an element skipped by the remote store.
type RejectedRecord struct {
	Element operation.WireElement `msgpack:"element"`
	Kind    string                `msgpack:"kind"`
	Message string                `msgpack:"message"`
}

// FailureRecord describes a delegate that failed in a best-effort
// federated execution.
type FailureRecord struct {
	GraphID string `msgpack:"graphId"`
	Kind    string `msgpack:"kind"`
	Message string `msgpack:"message"`
}

// Frame is a message of an Execute stream. The first frame holds the header
// and the following ones a batch of results or a single scalar.
type Frame struct {
	Header      *Header                 `msgpack:"header,omitempty"`
	Elements    []operation.WireElement `msgpack:"elements,omitempty"`
	IDs         []operation.WireID      `msgpack:"ids,omitempty"`
	Count       *int64                  `msgpack:"count,omitempty"`
	Bool        *bool                   `msgpack:"bool,omitempty"`
	SplitPoints codec.SplitPoints       `msgpack:"splitPoints,omitempty"`
	GraphIDs    []string                `msgpack:"graphIds,omitempty"`
}

func encodePayload(v interface{}) (*wrapperspb.BytesValue, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}

	return wrapperspb.Bytes(data), nil
}

func decodePayload(msg *wrapperspb.BytesValue, v interface{}) error {
	if err := msgpack.Unmarshal(msg.GetValue(), v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}

	return nil
}
