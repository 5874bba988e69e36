package bulk

import (
	"context"

	"github.com/mycok/uGraph/codec"
)

// RecordSink receives the encoded records of an export. Records of the same
// partition may arrive in any order and from several goroutines at once;
// sorting within a partition is the sink's job.
type RecordSink interface {
	Write(ctx context.Context, partition int, rec codec.Record) error
}

// RecordSinkFunc adapts a function to the RecordSink interface.
type RecordSinkFunc func(ctx context.Context, partition int, rec codec.Record) error

// Write calls f(ctx, partition, rec).
func (f RecordSinkFunc) Write(ctx context.Context, partition int, rec codec.Record) error {
	return f(ctx, partition, rec)
}

// source feeds payloads into a pipeline.
type source interface {
	// Next loads the next payload and returns true. It returns false when the
	// source is exhausted or fails.
	Next(context.Context) bool

	// Payload returns the current payload.
	Payload() *payload

	// Error returns the last error encountered by the source.
	Error() error
}

// processor transforms a payload for the next stage. Returning a nil payload
// drops it.
type processor interface {
	Process(context.Context, *payload) (*payload, error)
}

// processorFunc adapts a function to the processor interface.
type processorFunc func(context.Context, *payload) (*payload, error)

func (f processorFunc) Process(ctx context.Context, p *payload) (*payload, error) {
	return f(ctx, p)
}

// stageRunner runs a single pipeline stage. Run blocks until its input is
// closed, the context is cancelled or its processor fails.
type stageRunner interface {
	Run(context.Context, stageParams)
}

// sink consumes the payloads that leave the last stage.
type sink interface {
	Consume(context.Context, *payload) error
}

type stageParams struct {
	stage   int
	inChan  <-chan *payload
	outChan chan<- *payload
	errChan chan<- error
}
