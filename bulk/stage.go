package bulk

import (
	"context"
	"fmt"
	"sync"
)

// fifo processes payloads one at a time in arrival order.
type fifo struct {
	proc processor
}

func newFIFO(proc processor) stageRunner {
	return fifo{proc: proc}
}

func (r fifo) Run(ctx context.Context, params stageParams) {
	for {
		select {
		case <-ctx.Done():
			return
		case in, ok := <-params.inChan:
			if !ok {
				return
			}

			out, err := r.proc.Process(ctx, in)
			if err != nil {
				mayEmitError(fmt.Errorf("bulk stage %d: %w", params.stage, err), params.errChan)

				return
			}

			if out == nil {
				in.release()

				continue
			}

			select {
			case <-ctx.Done():
				return
			case params.outChan <- out:
			}
		}
	}
}

// fixedWorkerPool shares a stage between a constant number of fifo workers
// reading from the same input channel.
type fixedWorkerPool struct {
	fifos []stageRunner
}

func newFixedWorkerPool(proc processor, numOfWorkers int) stageRunner {
	if numOfWorkers <= 0 {
		panic("bulk: numOfWorkers must be > 0")
	}

	fifos := make([]stageRunner, numOfWorkers)
	for i := range fifos {
		fifos[i] = newFIFO(proc)
	}

	return fixedWorkerPool{fifos: fifos}
}

func (r fixedWorkerPool) Run(ctx context.Context, params stageParams) {
	var wg sync.WaitGroup
	for i := range r.fifos {
		wg.Add(1)

		go func(index int) {
			defer wg.Done()

			r.fifos[index].Run(ctx, params)
		}(i)
	}

	wg.Wait()
}
