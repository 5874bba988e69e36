package federated

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mycok/uGraph/codec"
	"github.com/mycok/uGraph/graph"
	"github.com/mycok/uGraph/operation"
	"github.com/mycok/uGraph/schema"
	"github.com/mycok/uGraph/store"
)

// Execute runs chain. Chains holding graph management operations run
// against the registry. Any other chain is sent to every targeted graph
// concurrently and the delegate outputs are merged according to the output
// type of the chain.
//
// By default the first delegate failure aborts the call. When the chain
// enables skip-failed mode the merged output of the remaining graphs is
// returned together with a *PartialFailureError.
func (s *Store) Execute(ctx context.Context, chain *operation.Chain, user store.User) (interface{}, error) {
	if chain == nil {
		return nil, store.ErrNilChain
	}

	if chain.HasAdmin() {
		return s.executeAdmin(ctx, chain, user)
	}

	output := chain.OutputType()
	if !mergeable(output) {
		ops := chain.Operations()

		return nil, &store.UnsupportedOperationError{Kind: ops[len(ops)-1].Kind(), GraphID: s.cfg.GraphID}
	}

	targets, err := s.targets(chain.GraphIDs(), user)
	if err != nil {
		return nil, err
	}

	if len(targets) == 0 {
		return emptyResult(output), nil
	}

	plans, unrouted, err := route(chain, targets)
	if err != nil {
		return nil, err
	}

	logger := s.cfg.Logger.WithFields(logrus.Fields{
		"user":        user.ID,
		"graphs":      len(plans),
		"skip_failed": chain.SkipFailed(),
	})
	logger.Debug("dispatching chain")

	if len(plans) == 0 {
		if len(unrouted) != 0 {
			return emptyResult(output), &store.RejectedElementsError{GraphID: s.cfg.GraphID, Rejected: unrouted}
		}

		return emptyResult(output), nil
	}

	return s.fanOut(ctx, chain, plans, unrouted, user, logger)
}

// delegatePlan is the chain sent to a single graph.
type delegatePlan struct {
	entry *graphEntry
	chain *operation.Chain
}

// route builds the chain each target runs. Elements are only written to
// graphs whose schema declares their group, and graphs declaring none of the
// groups a view selects are left out. Elements no target accepts are
// returned as rejected when the operation skips invalid elements and fail
// the call otherwise.
func route(chain *operation.Chain, targets []*graphEntry) ([]delegatePlan, []store.RejectedElement, error) {
	var unrouted []store.RejectedElement
	for i, op := range chain.Operations() {
		add, ok := op.(*operation.AddElements)
		if !ok {
			continue
		}

		for _, el := range add.Elements {
			if accepted(targets, el.GetGroup()) {
				continue
			}

			err := fmt.Errorf("%w: no targeted graph declares group %q", codec.ErrElementConversion, el.GetGroup())
			if !add.SkipInvalid {
				return nil, nil, &store.OperationError{Kind: add.Kind(), Index: i, Err: err}
			}

			unrouted = append(unrouted, store.RejectedElement{Element: el, Err: err})
		}
	}

	plans := make([]delegatePlan, 0, len(targets))
	for _, target := range targets {
		c, err := delegateChain(chain, target.reg.Schema)
		if err != nil {
			return nil, nil, err
		} else if c != nil {
			plans = append(plans, delegatePlan{entry: target, chain: c})
		}
	}

	return plans, unrouted, nil
}

// delegateChain narrows chain to the groups of sch. It returns nil when the
// graph has nothing to contribute.
func delegateChain(chain *operation.Chain, sch *schema.Schema) (*operation.Chain, error) {
	var (
		ops     = make([]operation.Operation, 0, len(chain.Operations()))
		changed bool
	)

	for _, op := range chain.Operations() {
		for _, v := range viewsOf(op) {
			if v != nil && len(v.Groups) != 0 && !declaresAny(sch, v.Groups) {
				return nil, nil
			}
		}

		add, ok := op.(*operation.AddElements)
		if !ok || len(add.Elements) == 0 {
			ops = append(ops, op)
			continue
		}

		kept := make([]graph.Element, 0, len(add.Elements))
		for _, el := range add.Elements {
			if sch.HasGroup(el.GetGroup()) {
				kept = append(kept, el)
			}
		}

		switch {
		case len(kept) == len(add.Elements):
			ops = append(ops, op)
		case len(kept) == 0:
			changed = true
		default:
			ops = append(ops, &operation.AddElements{Elements: kept, SkipInvalid: add.SkipInvalid})
			changed = true
		}
	}

	if !changed {
		return chain, nil
	} else if len(ops) == 0 {
		return nil, nil
	}

	narrowed, err := operation.NewChain(ops...)
	if err != nil {
		return nil, err
	}

	for k, v := range chain.Options() {
		narrowed = narrowed.WithOption(k, v)
	}

	return narrowed, nil
}

func viewsOf(op operation.Operation) []*operation.View {
	switch o := op.(type) {
	case *operation.GetElements:
		return []*operation.View{o.View}
	case *operation.GetAllElements:
		return []*operation.View{o.View}
	case *operation.GetAdjacentIDs:
		return []*operation.View{o.View}
	case *operation.Path:
		views := make([]*operation.View, 0, len(o.Hops))
		for _, hop := range o.Hops {
			views = append(views, hop.View)
		}

		return views
	default:
		return nil
	}
}

func declaresAny(sch *schema.Schema, groups []string) bool {
	for _, g := range groups {
		if sch.HasGroup(g) {
			return true
		}
	}

	return false
}

func accepted(targets []*graphEntry, group string) bool {
	for _, t := range targets {
		if t.reg.Schema.HasGroup(group) {
			return true
		}
	}

	return false
}

// annotate names the graph in err unless a store error already does.
func annotate(graphID string, err error) error {
	var (
		opErr    *store.OperationError
		unsupErr *store.UnsupportedOperationError
		unhErr   *store.UnhandledOperationError
	)

	switch {
	case errors.As(err, &opErr) && opErr.GraphID == graphID,
		errors.As(err, &unsupErr) && unsupErr.GraphID == graphID,
		errors.As(err, &unhErr) && unhErr.GraphID == graphID:
		return err
	default:
		return fmt.Errorf("graph %q: %w", graphID, err)
	}
}

func (s *Store) fanOut(
	ctx context.Context, chain *operation.Chain, plans []delegatePlan, unrouted []store.RejectedElement,
	user store.User, logger *logrus.Entry,
) (interface{}, error) {

	var (
		skipFailed = chain.SkipFailed()
		results    = make([]interface{}, len(plans))
		errs       = make([]error, len(plans))
		rejected   = make([][]store.RejectedElement, len(plans))
		g          errgroup.Group
		failOnce   sync.Once
		failErr    error
	)

	// Delegate streams outlive this call, so the context is owned by the
	// merged result rather than by the errgroup.
	fanCtx, cancel := context.WithCancel(ctx)

	for i, plan := range plans {
		i, target, delegated := i, plan.entry, plan.chain
		g.Go(func() error {
			start := s.cfg.Clock.Now()
			res, err := target.ex.Execute(fanCtx, delegated, user)

			var rejErr *store.RejectedElementsError
			if errors.As(err, &rejErr) {
				rejected[i] = rejErr.Rejected
				err = nil
			}

			s.metrics.ObserveDelegateCall(target.reg.GraphID, s.cfg.Clock.Now().Sub(start), err)
			if err != nil {
				closeValue(res)
				errs[i] = annotate(target.reg.GraphID, err)
				if !skipFailed {
					// Delegates cancelled by the first failure must not
					// mask it.
					failOnce.Do(func() {
						failErr = errs[i]
						cancel()
					})
				}

				return nil
			}

			results[i] = res

			return nil
		})
	}

	_ = g.Wait()
	if failErr != nil {
		for _, res := range results {
			closeValue(res)
		}

		logger.WithField("err", failErr).Debug("chain failed")

		return nil, failErr
	}

	var (
		succeeded []interface{}
		graphIDs  []string
		failures  []GraphFailure
		allReject = unrouted
	)

	for i, plan := range plans {
		target := plan.entry
		allReject = append(allReject, rejected[i]...)
		if errs[i] != nil {
			failures = append(failures, GraphFailure{GraphID: target.reg.GraphID, Err: errs[i]})
			logger.WithFields(logrus.Fields{
				"graph_id": target.reg.GraphID,
				"err":      errs[i],
			}).Warn("skipping failed graph")

			continue
		}

		succeeded = append(succeeded, results[i])
		graphIDs = append(graphIDs, target.reg.GraphID)
	}

	merged := s.merge(fanCtx, cancel, chain, succeeded, graphIDs, logger)

	if len(failures) != 0 {
		return merged, &PartialFailureError{Result: merged, Failures: failures, Rejected: allReject}
	} else if len(allReject) != 0 {
		return merged, &store.RejectedElementsError{GraphID: s.cfg.GraphID, Rejected: allReject}
	}

	return merged, nil
}

// merge combines the outputs of the delegates. Stream outputs take
// ownership of cancel; for every other output it is called before
// returning.
func (s *Store) merge(
	ctx context.Context, cancel context.CancelFunc, chain *operation.Chain,
	results []interface{}, graphIDs []string, logger *logrus.Entry,
) interface{} {

	switch chain.OutputType() {
	case operation.Elements:
		sources := make([]fanInSource, 0, len(results))
		for i, res := range results {
			if it, ok := res.(graph.ElementIterator); ok {
				sources = append(sources, fanInSource{
					graphID: graphIDs[i],
					it:      it,
					value:   func() interface{} { return it.Element() },
				})
			}
		}

		return &mergedElementIterator{newFanIn(ctx, cancel, sources, chain.SkipFailed(), logger)}
	case operation.ElementIDs:
		sources := make([]fanInSource, 0, len(results))
		for i, res := range results {
			if it := asIDIterator(res); it != nil {
				sources = append(sources, fanInSource{
					graphID: graphIDs[i],
					it:      it,
					value:   func() interface{} { return it.ElementID() },
				})
			}
		}

		return &mergedIDIterator{newFanIn(ctx, cancel, sources, chain.SkipFailed(), logger)}
	}

	defer cancel()

	switch chain.OutputType() {
	case operation.Count:
		var total int64
		for _, res := range results {
			if n, ok := res.(int64); ok {
				total += n
			}
		}

		return total
	case operation.Bool:
		for _, res := range results {
			if b, ok := res.(bool); ok && b {
				return true
			}
		}

		return false
	default:
		for _, res := range results {
			closeValue(res)
		}

		return nil
	}
}

// targets selects the graphs a chain runs against. Without explicit ids
// every graph the user may access is selected. Explicit ids must all be
// registered and are narrowed to the accessible ones.
func (s *Store) targets(ids []string, user store.User) ([]*graphEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ids == nil {
		var out []*graphEntry
		for _, e := range s.sortedEntries() {
			if user.HasAnyAuth(e.reg.GraphAuths...) {
				out = append(out, e)
			}
		}

		return out, nil
	}

	var (
		out    []*graphEntry
		denied []string
		seen   = make(map[string]bool, len(ids))
	)

	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		e, ok := s.graphs[id]
		if !ok {
			return nil, &UnknownGraphError{GraphID: id}
		}

		if !user.HasAnyAuth(e.reg.GraphAuths...) {
			denied = append(denied, id)
			continue
		}

		out = append(out, e)
	}

	if len(out) == 0 {
		return nil, &AuthorizationError{UserID: user.ID, GraphIDs: denied}
	}

	return out, nil
}

func mergeable(t operation.IOType) bool {
	switch t {
	case operation.Elements, operation.ElementIDs, operation.Count, operation.Bool, operation.None:
		return true
	default:
		return false
	}
}

func emptyResult(t operation.IOType) interface{} {
	switch t {
	case operation.Elements:
		return graph.NewElementIterator()
	case operation.ElementIDs:
		return graph.NewElementIDIterator()
	case operation.Count:
		return int64(0)
	case operation.Bool:
		return false
	default:
		return nil
	}
}

func asIDIterator(v interface{}) graph.ElementIDIterator {
	switch it := v.(type) {
	case graph.ElementIDIterator:
		return it
	case graph.ElementIterator:
		return graph.AsElementIDs(it)
	default:
		return nil
	}
}

// closeValue closes v when it is an iterator.
func closeValue(v interface{}) {
	if it, ok := v.(graph.Iterator); ok {
		_ = it.Close()
	}
}
