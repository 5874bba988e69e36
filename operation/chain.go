package operation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mycok/uGraph/store/trait"
)

// Options understood by federated stores.
const (
	// OptionGraphIDs holds a comma separated list of the graphs a chain
	// targets.
	OptionGraphIDs = "federated.graphIds"

	// OptionSkipFailed enables best-effort execution when set to "true".
	OptionSkipFailed = "federated.skipFailed"
)

// Chain is an ordered sequence of operations whose types have been checked:
// the output of every operation can be used as the input of the next.
type Chain struct {
	operations []Operation
	outputs    []IOType
	options    map[string]string
}

// NewChain type-checks ops and returns a chain that runs them in order. The
// first operation receives no input.
func NewChain(ops ...Operation) (*Chain, error) {
	if len(ops) == 0 {
		return nil, ErrEmptyChain
	}

	c := &Chain{
		operations: ops,
		outputs:    make([]IOType, len(ops)),
		options:    make(map[string]string),
	}

	prev := None
	for i, op := range ops {
		if op == nil {
			return nil, fmt.Errorf("operation %d: %w", i, ErrNilOperation)
		}

		if v, ok := op.(Validator); ok {
			if err := v.Validate(); err != nil {
				return nil, &InvalidOperationError{Index: i, Kind: op.Kind(), Err: err}
			}
		}

		in := op.InputType()
		if !prev.AssignableTo(in) {
			return nil, &ChainTypeError{Index: i, Kind: op.Kind(), Output: prev, Input: in}
		}

		out := op.OutputType()
		if _, ok := op.(passthrough); ok {
			out = prev
		}

		c.outputs[i] = out
		prev = out
	}

	return c, nil
}

// MustChain is like NewChain but panics on error. It simplifies building
// chains that are known to be valid.
func MustChain(ops ...Operation) *Chain {
	c, err := NewChain(ops...)
	if err != nil {
		panic(err)
	}

	return c
}

// Operations returns the operations of the chain.
func (c *Chain) Operations() []Operation {
	return append([]Operation(nil), c.operations...)
}

// OutputType returns the type produced by the last operation.
func (c *Chain) OutputType() IOType { return c.outputs[len(c.outputs)-1] }

// StepOutputType returns the type produced by the operation at index i.
func (c *Chain) StepOutputType(i int) IOType { return c.outputs[i] }

// RequiredTraits returns the union of the traits required by every
// operation.
func (c *Chain) RequiredTraits() trait.Set {
	out := trait.NewSet()
	for _, op := range c.operations {
		out = out.Union(op.RequiredTraits())
	}

	return out
}

// HasAdmin reports whether the chain contains a federated admin operation.
func (c *Chain) HasAdmin() bool {
	for _, op := range c.operations {
		if IsAdmin(op) {
			return true
		}
	}

	return false
}

// Option returns the value of a chain option.
func (c *Chain) Option(key string) string { return c.options[key] }

// Options returns a copy of every chain option.
func (c *Chain) Options() map[string]string {
	out := make(map[string]string, len(c.options))
	for k, v := range c.options {
		out[k] = v
	}

	return out
}

// WithOption sets a chain option and returns the chain.
func (c *Chain) WithOption(key, value string) *Chain {
	c.options[key] = value

	return c
}

// WithGraphIDs restricts a federated execution to the provided graphs.
func (c *Chain) WithGraphIDs(ids ...string) *Chain {
	return c.WithOption(OptionGraphIDs, strings.Join(ids, ","))
}

// WithSkipFailed toggles best-effort federated execution.
func (c *Chain) WithSkipFailed(skip bool) *Chain {
	return c.WithOption(OptionSkipFailed, strconv.FormatBool(skip))
}

// GraphIDs returns the graphs the chain targets. A nil slice means the
// chain does not name any graph.
func (c *Chain) GraphIDs() []string {
	raw := strings.TrimSpace(c.options[OptionGraphIDs])
	if raw == "" {
		return nil
	}

	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	return ids
}

// SkipFailed reports whether the chain runs in best-effort mode.
func (c *Chain) SkipFailed() bool {
	skip, _ := strconv.ParseBool(c.options[OptionSkipFailed])

	return skip
}
