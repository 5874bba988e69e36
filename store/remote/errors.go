package remote

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/mycok/uGraph/codec"
	"github.com/mycok/uGraph/federated"
	"github.com/mycok/uGraph/operation"
	"github.com/mycok/uGraph/schema"
	"github.com/mycok/uGraph/store"
)

// kindKey is the trailer carrying the kind of a failed call.
const kindKey = "ugraph-error-kind"

// ErrUserRejected is matched by every UserRejectedError.
var ErrUserRejected = errors.New("user rejected")

// UserRejectedError is returned when the UserResolver of a server refuses
// the user claimed by a client.
type UserRejectedError struct {
	UserID string
	Err    error
}

func (e *UserRejectedError) Error() string {
	return fmt.Sprintf("user %q: %s: %v", e.UserID, ErrUserRejected, e.Err)
}

// Is allows errors.Is(err, ErrUserRejected) to match.
func (e *UserRejectedError) Is(target error) bool { return target == ErrUserRejected }

func (e *UserRejectedError) Unwrap() error { return e.Err }

// Error kinds.
const (
	KindUnknown            = "unknown"
	KindCanceled           = "canceled"
	KindDeadlineExceeded   = "deadline_exceeded"
	KindUnsupported        = "unsupported_operation"
	KindUnhandled          = "unhandled_operation"
	KindChainType          = "chain_type"
	KindInvalidOperation   = "invalid_operation"
	KindUnknownOperation   = "unknown_operation"
	KindNotSerialisable    = "not_serialisable"
	KindElementConversion  = "element_conversion"
	KindInvalidSchema      = "invalid_schema"
	KindUnknownStoreType   = "unknown_store_type"
	KindGraphAlreadyExists = "graph_already_exists"
	KindUnknownParent      = "unknown_parent"
	KindAuthorization      = "authorization"
	KindUnknownGraph       = "unknown_graph"
	KindPartialFailure     = "partial_failure"
	KindUnexpectedInput    = "unexpected_input"
	KindMixedChain         = "mixed_chain"
	KindUserRejected       = "user_rejected"
)

type errorKind struct {
	kind     string
	sentinel error
	code     codes.Code
}

// errorKinds is matched in order; the first sentinel err matches wins.
var errorKinds = []errorKind{
	{KindUserRejected, ErrUserRejected, codes.Unauthenticated},
	{KindCanceled, context.Canceled, codes.Canceled},
	{KindDeadlineExceeded, context.DeadlineExceeded, codes.DeadlineExceeded},
	{KindPartialFailure, federated.ErrPartialFailure, codes.Unavailable},
	{KindAuthorization, federated.ErrAuthorization, codes.PermissionDenied},
	{KindUnknownGraph, federated.ErrUnknownGraph, codes.NotFound},
	{KindGraphAlreadyExists, federated.ErrGraphAlreadyExists, codes.AlreadyExists},
	{KindUnknownParent, federated.ErrUnknownParent, codes.FailedPrecondition},
	{KindMixedChain, federated.ErrMixedChain, codes.InvalidArgument},
	{KindUnsupported, store.ErrUnsupportedOperation, codes.Unimplemented},
	{KindUnhandled, store.ErrUnhandledOperation, codes.Unimplemented},
	{KindUnknownStoreType, store.ErrUnknownStoreType, codes.InvalidArgument},
	{KindUnexpectedInput, store.ErrUnexpectedInput, codes.InvalidArgument},
	{KindChainType, operation.ErrChainType, codes.InvalidArgument},
	{KindInvalidOperation, operation.ErrInvalidOperation, codes.InvalidArgument},
	{KindUnknownOperation, operation.ErrUnknownKind, codes.InvalidArgument},
	{KindNotSerialisable, operation.ErrNotSerialisable, codes.InvalidArgument},
	{KindElementConversion, codec.ErrElementConversion, codes.InvalidArgument},
	{KindInvalidSchema, schema.ErrInvalidSchema, codes.InvalidArgument},
}

// Error is returned by clients for failed remote calls. It matches the
// sentinel error of its kind, so errors.Is behaves as it does for a local
// store.
type Error struct {
	Code    codes.Code
	Kind    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("remote: %s", e.Message)
}

// Is allows errors.Is to match the sentinel error of the kind.
func (e *Error) Is(target error) bool {
	for _, k := range errorKinds {
		if k.kind == e.Kind {
			return target == k.sentinel
		}
	}

	return false
}

// kindOf classifies err.
func kindOf(err error) (string, codes.Code) {
	for _, k := range errorKinds {
		if errors.Is(err, k.sentinel) {
			return k.kind, k.code
		}
	}

	return KindUnknown, codes.Internal
}

// toStatus converts err into the trailer that carries its kind and a gRPC
// status error.
func toStatus(err error) (metadata.MD, error) {
	kind, code := kindOf(err)

	return metadata.Pairs(kindKey, kind), status.Error(code, err.Error())
}

// fromStatus converts an error returned by a gRPC call into an *Error.
func fromStatus(err error, trailer metadata.MD) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	kind := KindUnknown
	if values := trailer.Get(kindKey); len(values) != 0 {
		kind = values[0]
	} else {
		switch st.Code() {
		case codes.Canceled:
			kind = KindCanceled
		case codes.DeadlineExceeded:
			kind = KindDeadlineExceeded
		}
	}

	return &Error{Code: st.Code(), Kind: kind, Message: st.Message()}
}

// recordError rebuilds an error carried inside a frame.
func recordError(kind, message string) error {
	return &Error{Code: codes.OK, Kind: kind, Message: message}
}
