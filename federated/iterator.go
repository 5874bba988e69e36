package federated

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/mycok/uGraph/graph"
)

// Static and compile-time checks to ensure the merged iterators implement
// the graph iterator interfaces.
var (
	_ graph.ElementIterator   = (*mergedElementIterator)(nil)
	_ graph.ElementIDIterator = (*mergedIDIterator)(nil)
)

type fanInSource struct {
	graphID string
	it      graph.Iterator
	value   func() interface{}
}

type fanInItem struct {
	graphID string
	value   interface{}
	err     error
}

// fanIn pulls every delegate stream from its own goroutine and yields items
// in arrival order. Each goroutine owns its delegate iterator and closes it
// on exit.
type fanIn struct {
	ctx        context.Context
	cancel     context.CancelFunc
	ch         chan fanInItem
	wg         sync.WaitGroup
	skipFailed bool
	logger     *logrus.Entry

	current  interface{}
	failures []GraphFailure
	lastErr  error
	closed   bool

	mu       sync.Mutex
	closeErr error
}

func newFanIn(
	ctx context.Context, cancel context.CancelFunc, sources []fanInSource, skipFailed bool, logger *logrus.Entry,
) *fanIn {

	f := &fanIn{
		ctx:        ctx,
		cancel:     cancel,
		ch:         make(chan fanInItem),
		skipFailed: skipFailed,
		logger:     logger,
	}

	f.wg.Add(len(sources))
	for _, src := range sources {
		go f.pump(src)
	}

	go func() {
		f.wg.Wait()
		close(f.ch)
	}()

	return f
}

func (f *fanIn) pump(src fanInSource) {
	defer f.wg.Done()
	defer func() {
		if err := src.it.Close(); err != nil {
			f.mu.Lock()
			f.closeErr = multierror.Append(f.closeErr, fmt.Errorf("graph %q: %w", src.graphID, err))
			f.mu.Unlock()
		}
	}()

	for src.it.Next() {
		select {
		case f.ch <- fanInItem{graphID: src.graphID, value: src.value()}:
		case <-f.ctx.Done():
			return
		}
	}

	if err := src.it.Error(); err != nil {
		select {
		case f.ch <- fanInItem{graphID: src.graphID, err: err}:
		case <-f.ctx.Done():
		}
	}
}

func (f *fanIn) Next() bool {
	if f.lastErr != nil || f.closed {
		return false
	}

	for item := range f.ch {
		if item.err == nil {
			f.current = item.value

			return true
		}

		if f.skipFailed {
			f.failures = append(f.failures, GraphFailure{GraphID: item.graphID, Err: item.err})
			f.logger.WithFields(logrus.Fields{
				"graph_id": item.graphID,
				"err":      item.err,
			}).Warn("graph stream failed")

			continue
		}

		f.lastErr = fmt.Errorf("graph %q: %w", item.graphID, item.err)
		f.cancel()

		return false
	}

	if err := f.ctx.Err(); err != nil {
		f.lastErr = err
	} else if len(f.failures) != 0 {
		f.lastErr = &PartialFailureError{Failures: f.failures}
	}

	return false
}

func (f *fanIn) Error() error { return f.lastErr }

// Close cancels every delegate stream and waits for them to be released.
func (f *fanIn) Close() error {
	if f.closed {
		return nil
	}

	f.closed = true
	f.cancel()
	f.wg.Wait()

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closeErr
}

type mergedElementIterator struct {
	*fanIn
}

func (i *mergedElementIterator) Element() graph.Element { return i.current.(graph.Element) }

type mergedIDIterator struct {
	*fanIn
}

func (i *mergedIDIterator) ElementID() graph.ElementID { return i.current.(graph.ElementID) }
