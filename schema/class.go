package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/mycok/uGraph/graph"
)

// Class names the Go representation of a property or identifier type.
type Class string

// Supported classes. The byte tags are written into encoded values and must
// never be re-assigned.
const (
	ClassInt64     Class = "int64"
	ClassFloat64   Class = "float64"
	ClassString    Class = "string"
	ClassBool      Class = "bool"
	ClassTimestamp Class = "timestamp"
	ClassUUID      Class = "uuid"
	ClassBytes     Class = "bytes"
	ClassStringSet Class = "set<string>"
)

var classTags = map[Class]byte{
	ClassInt64:     0x01,
	ClassFloat64:   0x02,
	ClassString:    0x03,
	ClassBool:      0x04,
	ClassTimestamp: 0x05,
	ClassUUID:      0x06,
	ClassBytes:     0x07,
	ClassStringSet: 0x08,
}

// Valid reports whether c is a known class.
func (c Class) Valid() bool {
	_, ok := classTags[c]

	return ok
}

// Tag returns the byte tag written alongside encoded values of this class.
func (c Class) Tag() byte { return classTags[c] }

// Scalar reports whether values of the class have a natural total order and
// can therefore be used as identifiers or group-by properties.
func (c Class) Scalar() bool { return c.Valid() && c != ClassStringSet }

// Coerce converts loosely typed values, as produced by JSON, YAML or
// msgpack decoders, into the canonical Go type of the class.
func (c Class) Coerce(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}

	switch c {
	case ClassInt64:
		return coerceInt64(v)
	case ClassFloat64:
		return coerceFloat64(v)
	case ClassString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case ClassBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case ClassTimestamp:
		switch t := v.(type) {
		case time.Time:
			return t.UTC(), nil
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, t)
			if err != nil {
				return nil, fmt.Errorf("coerce %s: %w", c, err)
			}

			return parsed.UTC(), nil
		}
	case ClassUUID:
		switch id := v.(type) {
		case uuid.UUID:
			return id, nil
		case [16]byte:
			return uuid.UUID(id), nil
		case []byte:
			return uuid.FromBytes(id)
		case string:
			return uuid.Parse(id)
		}
	case ClassBytes:
		switch b := v.(type) {
		case []byte:
			return b, nil
		case string:
			return []byte(b), nil
		}
	case ClassStringSet:
		return coerceStringSet(v)
	}

	return nil, fmt.Errorf("coerce %s: unsupported value %v of type %T", c, v, v)
}

func coerceInt64(v interface{}) (interface{}, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint:
		if uint64(n) > math.MaxInt64 {
			break
		}

		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			break
		}

		return int64(n), nil
	case float64:
		if n == math.Trunc(n) && n >= math.MinInt64 && n <= math.MaxInt64 {
			return int64(n), nil
		}
	case json.Number:
		return n.Int64()
	}

	return nil, fmt.Errorf("coerce %s: unsupported value %v of type %T", ClassInt64, v, v)
}

func coerceFloat64(v interface{}) (interface{}, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	}

	if i, err := coerceInt64(v); err == nil {
		return float64(i.(int64)), nil
	}

	return nil, fmt.Errorf("coerce %s: unsupported value %v of type %T", ClassFloat64, v, v)
}

func coerceStringSet(v interface{}) (interface{}, error) {
	switch s := v.(type) {
	case graph.StringSet:
		return s, nil
	case []string:
		return graph.NewStringSet(s...), nil
	case map[string]struct{}:
		return graph.StringSet(s), nil
	case map[string]interface{}:
		out := make(graph.StringSet, len(s))
		for k := range s {
			out.Add(k)
		}

		return out, nil
	case []interface{}:
		out := make(graph.StringSet, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf(
					"coerce %s: member %v of type %T is not a string", ClassStringSet, item, item,
				)
			}

			out.Add(str)
		}

		return out, nil
	}

	return nil, fmt.Errorf("coerce %s: unsupported value %v of type %T", ClassStringSet, v, v)
}

// Check reports whether v already holds the canonical Go type of the class.
func (c Class) Check(v interface{}) bool {
	switch c {
	case ClassInt64:
		_, ok := v.(int64)
		return ok
	case ClassFloat64:
		_, ok := v.(float64)
		return ok
	case ClassString:
		_, ok := v.(string)
		return ok
	case ClassBool:
		_, ok := v.(bool)
		return ok
	case ClassTimestamp:
		_, ok := v.(time.Time)
		return ok
	case ClassUUID:
		_, ok := v.(uuid.UUID)
		return ok
	case ClassBytes:
		_, ok := v.([]byte)
		return ok
	case ClassStringSet:
		_, ok := v.(graph.StringSet)
		return ok
	default:
		return false
	}
}
