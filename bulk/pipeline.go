/*
	bulk package turns element streams into partitioned record streams for
	bulk loaders. Elements flow through a multi-stage pipeline:
		1. a source drains the element iterator.
		2. a fixed pool of workers encodes every element into records.
		3. a stage assigns each record to a partition using split points.
		4. a sink hands every record to the caller supplied RecordSink.
*/

package bulk

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// pipeline wires a source, a sequence of stages and a sink together with
// unbuffered channels.
type pipeline struct {
	stages []stageRunner
}

func newPipeline(stages ...stageRunner) *pipeline {
	return &pipeline{stages: stages}
}

// execute blocks until every payload produced by src has reached dst or
// been dropped, a component fails or ctx is cancelled. All component errors
// are returned together.
func (p *pipeline) execute(ctx context.Context, src source, dst sink) error {
	var wg sync.WaitGroup
	execCtx, cancel := context.WithCancel(ctx)

	// The i-th channel feeds the i-th stage; the last one feeds the sink.
	chans := make([]chan *payload, len(p.stages)+1)
	for i := range chans {
		chans[i] = make(chan *payload)
	}

	errChan := make(chan error, len(p.stages)+2)

	for i := range p.stages {
		wg.Add(1)

		go func(index int) {
			defer wg.Done()

			p.stages[index].Run(execCtx, stageParams{
				stage:   index,
				inChan:  chans[index],
				outChan: chans[index+1],
				errChan: errChan,
			})

			// Closing the output of a finished stage shuts the next one down.
			close(chans[index+1])
		}(i)
	}

	wg.Add(2)

	go func() {
		defer wg.Done()

		sourceWorker(execCtx, src, chans[0], errChan)
		close(chans[0])
	}()

	go func() {
		defer wg.Done()

		sinkWorker(execCtx, dst, chans[len(chans)-1], errChan)
	}()

	go func() {
		wg.Wait()

		close(errChan)
		cancel()
	}()

	var err error
	for stageErr := range errChan {
		err = multierror.Append(err, stageErr)
		cancel()
	}

	return err
}

func sourceWorker(ctx context.Context, src source, out chan<- *payload, errChan chan<- error) {
	for src.Next(ctx) {
		select {
		case <-ctx.Done():
			return
		case out <- src.Payload():
		}
	}

	if err := src.Error(); err != nil {
		mayEmitError(fmt.Errorf("bulk source: %w", err), errChan)
	}
}

func sinkWorker(ctx context.Context, dst sink, in <-chan *payload, errChan chan<- error) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-in:
			if !ok {
				return
			}

			if err := dst.Consume(ctx, p); err != nil {
				mayEmitError(fmt.Errorf("bulk sink: %w", err), errChan)

				return
			}

			p.release()
		}
	}
}

// mayEmitError drops err when the error channel is already full.
func mayEmitError(err error, errChan chan<- error) {
	select {
	case errChan <- err:
	default:
	}
}
