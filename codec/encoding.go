package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/mycok/uGraph/graph"
	"github.com/mycok/uGraph/schema"
)

const (
	intMin      = 0x80
	intMax      = 0xfd
	intMaxWidth = 8
	intZero     = intMin + intMaxWidth
	intSmall    = intMax - intZero - intMaxWidth

	escape      byte = 0x00
	escapedNul  byte = 0xff
	escapedTerm byte = 0x01
)

var errInsufficientBytes = errors.New("insufficient bytes")

// EncodeUvarintAscending appends a length-prefixed big-endian encoding of v
// to b. Encoded values sort in the same order as the integers they encode.
func EncodeUvarintAscending(b []byte, v uint64) []byte {
	if v <= intSmall {
		return append(b, intZero+byte(v))
	}

	width := 8
	for width > 1 && v>>(8*(width-1)) == 0 {
		width--
	}

	b = append(b, byte(intMax-intMaxWidth+width))
	for shift := 8 * (width - 1); shift >= 0; shift -= 8 {
		b = append(b, byte(v>>shift))
	}

	return b
}

// DecodeUvarintAscending decodes a value written by EncodeUvarintAscending
// and returns the remainder of the input.
func DecodeUvarintAscending(b []byte) ([]byte, uint64, error) {
	if len(b) == 0 {
		return nil, 0, fmt.Errorf("uvarint: %w", errInsufficientBytes)
	}

	if b[0] < intZero {
		return nil, 0, fmt.Errorf("uvarint: invalid marker 0x%02x", b[0])
	}

	length := int(b[0]) - intZero
	b = b[1:]
	if length <= intSmall {
		return b, uint64(length), nil
	}

	length -= intSmall
	if length > intMaxWidth {
		return nil, 0, fmt.Errorf("uvarint: invalid length %d", length)
	} else if len(b) < length {
		return nil, 0, fmt.Errorf("uvarint: %w", errInsufficientBytes)
	}

	var v uint64
	for _, t := range b[:length] {
		v = (v << 8) | uint64(t)
	}

	return b[length:], v, nil
}

func encodeInt64Ascending(b []byte, v int64) []byte {
	return binary.BigEndian.AppendUint64(b, uint64(v)^(1<<63))
}

func decodeInt64Ascending(b []byte) ([]byte, int64, error) {
	if len(b) < 8 {
		return nil, 0, fmt.Errorf("int64: %w", errInsufficientBytes)
	}

	return b[8:], int64(binary.BigEndian.Uint64(b) ^ (1 << 63)), nil
}

func encodeFloat64Ascending(b []byte, f float64) []byte {
	bits := math.Float64bits(f)
	if bits&(1<<63) == 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}

	return binary.BigEndian.AppendUint64(b, bits)
}

func decodeFloat64Ascending(b []byte) ([]byte, float64, error) {
	if len(b) < 8 {
		return nil, 0, fmt.Errorf("float64: %w", errInsufficientBytes)
	}

	bits := binary.BigEndian.Uint64(b)
	if bits&(1<<63) != 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}

	return b[8:], math.Float64frombits(bits), nil
}

// encodeBytesAscending escapes every 0x00 as 0x00 0xff and terminates the
// value with 0x00 0x01 so that shorter values sort before their extensions.
func encodeBytesAscending(b, data []byte) []byte {
	for _, c := range data {
		if c == escape {
			b = append(b, escape, escapedNul)

			continue
		}

		b = append(b, c)
	}

	return append(b, escape, escapedTerm)
}

func decodeBytesAscending(b []byte) ([]byte, []byte, error) {
	var out []byte
	for i := 0; i < len(b); i++ {
		if b[i] != escape {
			out = append(out, b[i])

			continue
		}

		if i+1 >= len(b) {
			break
		}

		switch b[i+1] {
		case escapedTerm:
			if out == nil {
				out = []byte{}
			}

			return b[i+2:], out, nil
		case escapedNul:
			out = append(out, escape)
			i++
		default:
			return nil, nil, fmt.Errorf("bytes: invalid escape 0x%02x", b[i+1])
		}
	}

	return nil, nil, fmt.Errorf("bytes: %w", errInsufficientBytes)
}

// encodeScalarAscending appends the order-preserving encoding of a value of
// class c. The value must already hold the canonical Go type of the class.
func encodeScalarAscending(b []byte, c schema.Class, v interface{}) ([]byte, error) {
	switch c {
	case schema.ClassInt64:
		return encodeInt64Ascending(b, v.(int64)), nil
	case schema.ClassFloat64:
		return encodeFloat64Ascending(b, v.(float64)), nil
	case schema.ClassTimestamp:
		return encodeInt64Ascending(b, v.(time.Time).UnixNano()), nil
	case schema.ClassBool:
		if v.(bool) {
			return append(b, 0x01), nil
		}

		return append(b, 0x00), nil
	case schema.ClassUUID:
		id := v.(uuid.UUID)

		return append(b, id[:]...), nil
	case schema.ClassString:
		return encodeBytesAscending(b, []byte(v.(string))), nil
	case schema.ClassBytes:
		return encodeBytesAscending(b, v.([]byte)), nil
	default:
		return nil, fmt.Errorf("class %q cannot be encoded in a key", c)
	}
}

func decodeScalarAscending(b []byte, c schema.Class) ([]byte, interface{}, error) {
	switch c {
	case schema.ClassInt64:
		return decodeInt64Ascending(b)
	case schema.ClassFloat64:
		return decodeFloat64Ascending(b)
	case schema.ClassTimestamp:
		rest, nanos, err := decodeInt64Ascending(b)
		if err != nil {
			return nil, nil, err
		}

		return rest, time.Unix(0, nanos).UTC(), nil
	case schema.ClassBool:
		if len(b) < 1 {
			return nil, nil, fmt.Errorf("bool: %w", errInsufficientBytes)
		}

		return b[1:], b[0] == 0x01, nil
	case schema.ClassUUID:
		if len(b) < 16 {
			return nil, nil, fmt.Errorf("uuid: %w", errInsufficientBytes)
		}

		var id uuid.UUID
		copy(id[:], b[:16])

		return b[16:], id, nil
	case schema.ClassString:
		rest, data, err := decodeBytesAscending(b)
		if err != nil {
			return nil, nil, err
		}

		return rest, string(data), nil
	case schema.ClassBytes:
		return decodeBytesAscending(b)
	default:
		return nil, nil, fmt.Errorf("class %q cannot be decoded from a key", c)
	}
}

// fixedWidth returns the payload width of fixed-width classes.
func fixedWidth(c schema.Class) (int, bool) {
	switch c {
	case schema.ClassInt64, schema.ClassFloat64, schema.ClassTimestamp:
		return 8, true
	case schema.ClassBool:
		return 1, true
	case schema.ClassUUID:
		return 16, true
	default:
		return 0, false
	}
}

// encodePayload returns the value-side encoding of v. Unlike key encodings
// payloads are never compared, so they only need to be compact.
func encodePayload(c schema.Class, v interface{}) ([]byte, error) {
	switch c {
	case schema.ClassInt64:
		return binary.BigEndian.AppendUint64(nil, uint64(v.(int64))), nil
	case schema.ClassFloat64:
		return binary.BigEndian.AppendUint64(nil, math.Float64bits(v.(float64))), nil
	case schema.ClassTimestamp:
		return binary.BigEndian.AppendUint64(nil, uint64(v.(time.Time).UnixNano())), nil
	case schema.ClassBool:
		if v.(bool) {
			return []byte{0x01}, nil
		}

		return []byte{0x00}, nil
	case schema.ClassUUID:
		id := v.(uuid.UUID)

		return append([]byte(nil), id[:]...), nil
	case schema.ClassString:
		return []byte(v.(string)), nil
	case schema.ClassBytes:
		return append([]byte(nil), v.([]byte)...), nil
	case schema.ClassStringSet:
		members := v.(graph.StringSet).Sorted()
		out := EncodeUvarintAscending(nil, uint64(len(members)))
		for _, m := range members {
			out = EncodeUvarintAscending(out, uint64(len(m)))
			out = append(out, m...)
		}

		return out, nil
	default:
		return nil, fmt.Errorf("unknown class %q", c)
	}
}

func decodePayload(c schema.Class, p []byte) (interface{}, error) {
	if width, fixed := fixedWidth(c); fixed && len(p) != width {
		return nil, fmt.Errorf("class %q expects %d bytes, got %d", c, width, len(p))
	}

	switch c {
	case schema.ClassInt64:
		return int64(binary.BigEndian.Uint64(p)), nil
	case schema.ClassFloat64:
		return math.Float64frombits(binary.BigEndian.Uint64(p)), nil
	case schema.ClassTimestamp:
		return time.Unix(0, int64(binary.BigEndian.Uint64(p))).UTC(), nil
	case schema.ClassBool:
		return p[0] == 0x01, nil
	case schema.ClassUUID:
		var id uuid.UUID
		copy(id[:], p)

		return id, nil
	case schema.ClassString:
		return string(p), nil
	case schema.ClassBytes:
		return append([]byte{}, p...), nil
	case schema.ClassStringSet:
		rest, n, err := DecodeUvarintAscending(p)
		if err != nil {
			return nil, err
		}

		if n > uint64(len(rest)) {
			return nil, fmt.Errorf("set: %w", errInsufficientBytes)
		}

		set := make(graph.StringSet, n)
		for i := uint64(0); i < n; i++ {
			var size uint64
			if rest, size, err = DecodeUvarintAscending(rest); err != nil {
				return nil, err
			} else if uint64(len(rest)) < size {
				return nil, fmt.Errorf("set member: %w", errInsufficientBytes)
			}

			set.Add(string(rest[:size]))
			rest = rest[size:]
		}

		if len(rest) != 0 {
			return nil, fmt.Errorf("set: %d trailing bytes", len(rest))
		}

		return set, nil
	default:
		return nil, fmt.Errorf("unknown class %q", c)
	}
}

// PrefixEnd returns the smallest key that is greater than every key with the
// given prefix, or nil when no such key exists.
func PrefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] != 0xff {
			end[i]++

			return end[:i+1]
		}
	}

	return nil
}
