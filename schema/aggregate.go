package schema

import (
	"bytes"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mycok/uGraph/graph"
)

// Aggregator merges two values of the same property. Implementations must be
// associative and commutative. A nil operand acts as the identity element.
type Aggregator interface {
	// Name returns the name used to reference the aggregator in a schema.
	Name() string

	// Supports reports whether the aggregator can merge values of class c.
	Supports(c Class) bool

	// Merge combines a and b.
	Merge(a, b interface{}) (interface{}, error)
}

var aggregators = map[string]Aggregator{
	"sum":   sumAggregator{},
	"min":   extremumAggregator{name: "min", keepLeft: func(cmp int) bool { return cmp <= 0 }},
	"max":   extremumAggregator{name: "max", keepLeft: func(cmp int) bool { return cmp >= 0 }},
	"union": unionAggregator{},
	"and":   boolAggregator{name: "and", op: func(a, b bool) bool { return a && b }},
	"or":    boolAggregator{name: "or", op: func(a, b bool) bool { return a || b }},
}

// LookupAggregator returns the aggregator registered under name.
func LookupAggregator(name string) (Aggregator, bool) {
	agg, ok := aggregators[name]

	return agg, ok
}

func mismatch(agg string, a, b interface{}) error {
	return fmt.Errorf("%s: cannot merge %v (%T) with %v (%T)", agg, a, a, b, b)
}

type sumAggregator struct{}

func (sumAggregator) Name() string { return "sum" }

func (sumAggregator) Supports(c Class) bool { return c == ClassInt64 || c == ClassFloat64 }

func (sumAggregator) Merge(a, b interface{}) (interface{}, error) {
	if a == nil {
		return b, nil
	} else if b == nil {
		return a, nil
	}

	switch x := a.(type) {
	case int64:
		if y, ok := b.(int64); ok {
			return x + y, nil
		}
	case float64:
		if y, ok := b.(float64); ok {
			return x + y, nil
		}
	}

	return nil, mismatch("sum", a, b)
}

type extremumAggregator struct {
	name     string
	keepLeft func(cmp int) bool
}

func (e extremumAggregator) Name() string { return e.name }

func (extremumAggregator) Supports(c Class) bool {
	switch c {
	case ClassInt64, ClassFloat64, ClassString, ClassTimestamp:
		return true
	default:
		return false
	}
}

func (e extremumAggregator) Merge(a, b interface{}) (interface{}, error) {
	if a == nil {
		return b, nil
	} else if b == nil {
		return a, nil
	}

	cmp, err := compareScalars(a, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.name, err)
	}

	if e.keepLeft(cmp) {
		return a, nil
	}

	return b, nil
}

type unionAggregator struct{}

func (unionAggregator) Name() string { return "union" }

func (unionAggregator) Supports(c Class) bool { return c == ClassStringSet }

func (unionAggregator) Merge(a, b interface{}) (interface{}, error) {
	if a == nil {
		return b, nil
	} else if b == nil {
		return a, nil
	}

	x, okA := a.(graph.StringSet)
	y, okB := b.(graph.StringSet)
	if !okA || !okB {
		return nil, mismatch("union", a, b)
	}

	out := x.Clone()
	for v := range y {
		out.Add(v)
	}

	return out, nil
}

type boolAggregator struct {
	name string
	op   func(a, b bool) bool
}

func (b boolAggregator) Name() string { return b.name }

func (boolAggregator) Supports(c Class) bool { return c == ClassBool }

func (agg boolAggregator) Merge(a, b interface{}) (interface{}, error) {
	if a == nil {
		return b, nil
	} else if b == nil {
		return a, nil
	}

	x, okA := a.(bool)
	y, okB := b.(bool)
	if !okA || !okB {
		return nil, mismatch(agg.name, a, b)
	}

	return agg.op(x, y), nil
}

// compareScalars compares two values of the same scalar class and returns
// -1, 0 or 1.
func compareScalars(a, b interface{}) (int, error) {
	switch x := a.(type) {
	case int64:
		if y, ok := b.(int64); ok {
			return cmpOrdered(x < y, x > y), nil
		}
	case float64:
		if y, ok := b.(float64); ok {
			return cmpOrdered(x < y, x > y), nil
		}
	case string:
		if y, ok := b.(string); ok {
			return cmpOrdered(x < y, x > y), nil
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return cmpOrdered(x.Before(y), x.After(y)), nil
		}
	case bool:
		if y, ok := b.(bool); ok {
			return cmpOrdered(!x && y, x && !y), nil
		}
	case uuid.UUID:
		if y, ok := b.(uuid.UUID); ok {
			return bytes.Compare(x[:], y[:]), nil
		}
	case []byte:
		if y, ok := b.([]byte); ok {
			return bytes.Compare(x, y), nil
		}
	}

	return 0, fmt.Errorf("cannot compare %v (%T) with %v (%T)", a, a, b, b)
}

// Compare exposes the natural order of scalar property values. It is used by
// query filters.
func Compare(a, b interface{}) (int, error) { return compareScalars(a, b) }

func cmpOrdered(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	default:
		return 0
	}
}
