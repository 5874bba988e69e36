/*
	codec package converts graph elements into records for sorted key-value
	stores and back. Keys sort by identifier, then group, then group-by
	property values, and values hold the aggregable properties only so that
	records sharing a key can be merged by the store.
*/

package codec

import (
	"bytes"
	"encoding/binary"

	"github.com/mycok/uGraph/graph"
	"github.com/mycok/uGraph/schema"
)

// Record is a single key/value pair written to a sorted key-value store.
type Record struct {
	Key   []byte
	Value []byte
}

// Qualifier tells which index an edge record belongs to.
type Qualifier byte

// Edge qualifiers. Entities carry QualifierNone.
const (
	QualifierNone           Qualifier = 0x00
	QualifierUndirected     Qualifier = 0x01
	QualifierOutgoing       Qualifier = 0x02
	QualifierIncoming       Qualifier = 0x03
	QualifierUndirectedCopy Qualifier = 0x04
)

// Primary reports whether the record holds the canonical copy of its
// element. Full scans must skip non-primary records.
func (q Qualifier) Primary() bool {
	return q != QualifierIncoming && q != QualifierUndirectedCopy
}

const (
	kindEntity byte = 0x01
	kindEdge   byte = 0x02

	groupByAbsent  byte = 0x00
	groupByPresent byte = 0x01
)

type groupInfo struct {
	name    string
	marker  uint16
	edge    bool
	def     schema.ElementDefinition
	props   []string
	ids     map[string]int
	classes map[string]schema.Class
}

// Converter encodes and decodes the elements of a single schema. It is safe
// for concurrent use.
type Converter struct {
	schema  *schema.Schema
	vertex  schema.Class
	groups  map[string]*groupInfo
	markers []*groupInfo
}

// NewConverter returns a converter for the provided schema. The schema is
// validated and copied.
func NewConverter(s *schema.Schema) (*Converter, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	s = s.Clone()
	c := &Converter{
		schema: s,
		vertex: s.VertexClass(),
		groups: make(map[string]*groupInfo),
	}

	for i, group := range s.Groups() {
		def, isEdge, _ := s.Definition(group)
		info := &groupInfo{
			name:    group,
			marker:  uint16(i),
			edge:    isEdge,
			def:     def,
			props:   def.PropertyNames(),
			ids:     make(map[string]int),
			classes: make(map[string]schema.Class),
		}

		for id, prop := range info.props {
			info.ids[prop] = id
			info.classes[prop], _ = s.PropertyClass(group, prop)
		}

		c.groups[group] = info
		c.markers = append(c.markers, info)
	}

	return c, nil
}

// Schema returns the schema used by the converter.
func (c *Converter) Schema() *schema.Schema { return c.schema }

// Encode converts an element into one record, or two records for edges of
// bidirectional groups. Both records of an edge carry the same value.
func (c *Converter) Encode(el graph.Element) ([]Record, error) {
	info, ok := c.groups[el.GetGroup()]
	if !ok {
		return nil, conversionErrorf(nil, "unknown group %q", el.GetGroup())
	}

	props, err := c.normaliseProperties(info, el.GetProperties())
	if err != nil {
		return nil, err
	}

	value, err := c.encodeValue(info, props)
	if err != nil {
		return nil, err
	}

	groupBy, err := c.encodeGroupBy(info, props)
	if err != nil {
		return nil, err
	}

	switch e := el.(type) {
	case *graph.Entity:
		if info.edge {
			return nil, conversionErrorf(nil, "group %q is an edge group", info.name)
		}

		vertex, err := c.EncodeIdentifier(e.Vertex)
		if err != nil {
			return nil, err
		}

		key := append(vertex, kindEntity)
		key = binary.BigEndian.AppendUint16(key, info.marker)
		key = append(key, groupBy...)

		return []Record{{Key: key, Value: value}}, nil
	case *graph.Edge:
		if !info.edge {
			return nil, conversionErrorf(nil, "group %q is an entity group", info.name)
		}

		src, err := c.EncodeIdentifier(e.Source)
		if err != nil {
			return nil, err
		}

		dest, err := c.EncodeIdentifier(e.Destination)
		if err != nil {
			return nil, err
		}

		primary, secondary := QualifierOutgoing, QualifierIncoming
		if !e.Directed {
			primary, secondary = QualifierUndirected, QualifierUndirectedCopy
			if bytes.Compare(src, dest) > 0 {
				src, dest = dest, src
			}
		}

		records := []Record{{Key: edgeKey(src, dest, info.marker, primary, groupBy), Value: value}}
		if info.def.Bidirectional && !bytes.Equal(src, dest) {
			records = append(records, Record{
				Key:   edgeKey(dest, src, info.marker, secondary, groupBy),
				Value: append([]byte(nil), value...),
			})
		}

		return records, nil
	default:
		return nil, conversionErrorf(nil, "unsupported element type %T", el)
	}
}

func edgeKey(first, second []byte, marker uint16, q Qualifier, groupBy []byte) []byte {
	key := make([]byte, 0, len(first)+len(second)+4+len(groupBy))
	key = append(key, first...)
	key = append(key, kindEdge)
	key = append(key, second...)
	key = binary.BigEndian.AppendUint16(key, marker)
	key = append(key, byte(q))

	return append(key, groupBy...)
}

// Decode converts a record back into the element it was produced from.
func (c *Converter) Decode(rec Record) (graph.Element, error) {
	d, err := c.DecodeRecord(rec)
	if err != nil {
		return nil, err
	}

	return d.Element, nil
}

// DecodedRecord is a decoded record along with the key details scans need.
type DecodedRecord struct {
	Element   graph.Element
	Qualifier Qualifier

	// Identity is the key without its group-by bytes. Records that share an
	// identity hold the same element under different group-by values and
	// are adjacent in key order.
	Identity []byte
}

// DecodeRecord decodes rec and reports its qualifier and identity.
func (c *Converter) DecodeRecord(rec Record) (DecodedRecord, error) {
	pk, err := c.parseKey(rec.Key)
	if err != nil {
		return DecodedRecord{}, err
	}

	props, err := c.decodeValue(pk.info, rec.Value)
	if err != nil {
		return DecodedRecord{}, err
	}

	for name, v := range pk.groupBy {
		props[name] = v
	}

	out := DecodedRecord{Qualifier: pk.qualifier, Identity: rec.Key[:pk.identityLen]}
	if !pk.info.edge {
		out.Element = &graph.Entity{Group: pk.info.name, Vertex: pk.first, Properties: props}

		return out, nil
	}

	edge := &graph.Edge{Group: pk.info.name, Properties: props}
	switch pk.qualifier {
	case QualifierOutgoing:
		edge.Source, edge.Destination, edge.Directed = pk.first, pk.second, true
	case QualifierIncoming:
		edge.Source, edge.Destination, edge.Directed = pk.second, pk.first, true
	case QualifierUndirected:
		edge.Source, edge.Destination = pk.first, pk.second
	case QualifierUndirectedCopy:
		edge.Source, edge.Destination = pk.second, pk.first
	}

	out.Element = edge

	return out, nil
}

// Qualifier returns the qualifier stored in key.
func (c *Converter) Qualifier(key []byte) (Qualifier, error) {
	pk, err := c.parseKey(key)
	if err != nil {
		return QualifierNone, err
	}

	return pk.qualifier, nil
}

// MergeValues aggregates two values stored under the same key.
func (c *Converter) MergeValues(key, a, b []byte) ([]byte, error) {
	pk, err := c.parseKey(key)
	if err != nil {
		return nil, err
	}

	left, err := c.decodeValue(pk.info, a)
	if err != nil {
		return nil, err
	}

	right, err := c.decodeValue(pk.info, b)
	if err != nil {
		return nil, err
	}

	merged, err := c.schema.Aggregate(pk.info.name, left, right)
	if err != nil {
		return nil, conversionErrorf(err, "merge values")
	}

	return c.encodeValue(pk.info, merged)
}

// EncodeIdentifier returns the order-preserving encoding of a vertex
// identifier.
func (c *Converter) EncodeIdentifier(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, conversionErrorf(nil, "missing vertex identifier")
	}

	coerced, err := c.vertex.Coerce(v)
	if err != nil {
		return nil, conversionErrorf(err, "vertex identifier")
	}

	out, err := encodeScalarAscending(nil, c.vertex, coerced)
	if err != nil {
		return nil, conversionErrorf(err, "vertex identifier")
	}

	return out, nil
}

// VertexPrefix returns the prefix shared by every record keyed by v.
func (c *Converter) VertexPrefix(v interface{}) ([]byte, error) {
	return c.EncodeIdentifier(v)
}

// EntityPrefix returns the prefix shared by every entity record of v.
func (c *Converter) EntityPrefix(v interface{}) ([]byte, error) {
	prefix, err := c.EncodeIdentifier(v)
	if err != nil {
		return nil, err
	}

	return append(prefix, kindEntity), nil
}

// AdjacencyPrefix returns the prefix shared by every edge record keyed by v.
func (c *Converter) AdjacencyPrefix(v interface{}) ([]byte, error) {
	prefix, err := c.EncodeIdentifier(v)
	if err != nil {
		return nil, err
	}

	return append(prefix, kindEdge), nil
}

// EdgePrefix returns the prefix shared by every edge record keyed by src
// and leading to dest.
func (c *Converter) EdgePrefix(src, dest interface{}) ([]byte, error) {
	prefix, err := c.AdjacencyPrefix(src)
	if err != nil {
		return nil, err
	}

	second, err := c.EncodeIdentifier(dest)
	if err != nil {
		return nil, err
	}

	return append(prefix, second...), nil
}

func (c *Converter) normaliseProperties(info *groupInfo, props graph.Properties) (graph.Properties, error) {
	out := make(graph.Properties, len(props))
	for name, v := range props {
		if v == nil {
			continue
		}

		class, ok := info.classes[name]
		if !ok {
			return nil, conversionErrorf(nil, "property %q is not declared by group %q", name, info.name)
		}

		coerced, err := class.Coerce(v)
		if err != nil {
			return nil, conversionErrorf(err, "property %q", name)
		}

		out[name] = coerced
	}

	return out, nil
}

func (c *Converter) encodeGroupBy(info *groupInfo, props graph.Properties) ([]byte, error) {
	var out []byte
	for _, name := range info.def.GroupBy {
		v, ok := props[name]
		if !ok {
			out = append(out, groupByAbsent)

			continue
		}

		var err error
		out = append(out, groupByPresent)
		if out, err = encodeScalarAscending(out, info.classes[name], v); err != nil {
			return nil, conversionErrorf(err, "group-by property %q", name)
		}
	}

	return out, nil
}

func (c *Converter) encodeValue(info *groupInfo, props graph.Properties) ([]byte, error) {
	var (
		count int
		body  []byte
	)

	for id, name := range info.props {
		v, ok := props[name]
		if !ok || v == nil || info.def.IsGroupBy(name) {
			continue
		}

		class := info.classes[name]
		payload, err := encodePayload(class, v)
		if err != nil {
			return nil, conversionErrorf(err, "property %q", name)
		}

		body = EncodeUvarintAscending(body, uint64(id))
		body = append(body, class.Tag())
		body = EncodeUvarintAscending(body, uint64(len(payload)))
		body = append(body, payload...)
		count++
	}

	return append(EncodeUvarintAscending(nil, uint64(count)), body...), nil
}

func (c *Converter) decodeValue(info *groupInfo, value []byte) (graph.Properties, error) {
	rest, count, err := DecodeUvarintAscending(value)
	if err != nil {
		return nil, conversionErrorf(err, "value of group %q", info.name)
	} else if count > uint64(len(rest)) {
		return nil, conversionErrorf(nil, "value of group %q declares %d properties", info.name, count)
	}

	props := make(graph.Properties, count+uint64(len(info.def.GroupBy)))
	for i := uint64(0); i < count; i++ {
		var id, size uint64
		if rest, id, err = DecodeUvarintAscending(rest); err != nil {
			return nil, conversionErrorf(err, "property id")
		} else if id >= uint64(len(info.props)) {
			return nil, conversionErrorf(nil, "unknown property id %d in group %q", id, info.name)
		}

		name := info.props[id]
		class := info.classes[name]
		if len(rest) == 0 || rest[0] != class.Tag() {
			return nil, conversionErrorf(nil, "property %q: class tag does not match %q", name, class)
		}

		if rest, size, err = DecodeUvarintAscending(rest[1:]); err != nil {
			return nil, conversionErrorf(err, "property %q", name)
		} else if uint64(len(rest)) < size {
			return nil, conversionErrorf(errInsufficientBytes, "property %q", name)
		}

		v, err := decodePayload(class, rest[:size])
		if err != nil {
			return nil, conversionErrorf(err, "property %q", name)
		}

		props[name] = v
		rest = rest[size:]
	}

	if len(rest) != 0 {
		return nil, conversionErrorf(nil, "%d trailing bytes in value of group %q", len(rest), info.name)
	}

	return props, nil
}

type parsedKey struct {
	info        *groupInfo
	first       interface{}
	second      interface{}
	qualifier   Qualifier
	groupBy     graph.Properties
	identityLen int
}

func (c *Converter) parseKey(key []byte) (*parsedKey, error) {
	pk := new(parsedKey)

	rest, first, err := decodeScalarAscending(key, c.vertex)
	if err != nil {
		return nil, conversionErrorf(err, "key identifier")
	} else if len(rest) == 0 {
		return nil, conversionErrorf(errInsufficientBytes, "key kind")
	}

	pk.first = first
	kind := rest[0]
	rest = rest[1:]

	switch kind {
	case kindEntity:
	case kindEdge:
		if rest, pk.second, err = decodeScalarAscending(rest, c.vertex); err != nil {
			return nil, conversionErrorf(err, "key destination")
		}
	default:
		return nil, conversionErrorf(nil, "unknown key kind 0x%02x", kind)
	}

	if len(rest) < 2 {
		return nil, conversionErrorf(errInsufficientBytes, "group marker")
	}

	marker := binary.BigEndian.Uint16(rest)
	rest = rest[2:]
	if int(marker) >= len(c.markers) {
		return nil, conversionErrorf(nil, "unknown group marker %d", marker)
	}

	pk.info = c.markers[marker]
	if pk.info.edge != (kind == kindEdge) {
		return nil, conversionErrorf(nil, "key kind does not match group %q", pk.info.name)
	}

	if kind == kindEdge {
		if len(rest) == 0 {
			return nil, conversionErrorf(errInsufficientBytes, "edge qualifier")
		}

		pk.qualifier = Qualifier(rest[0])
		rest = rest[1:]
		if pk.qualifier < QualifierUndirected || pk.qualifier > QualifierUndirectedCopy {
			return nil, conversionErrorf(nil, "unknown edge qualifier 0x%02x", byte(pk.qualifier))
		}
	}

	pk.identityLen = len(key) - len(rest)
	pk.groupBy = make(graph.Properties, len(pk.info.def.GroupBy))
	for _, name := range pk.info.def.GroupBy {
		if len(rest) == 0 {
			return nil, conversionErrorf(errInsufficientBytes, "group-by property %q", name)
		}

		present := rest[0]
		rest = rest[1:]
		if present == groupByAbsent {
			continue
		}

		var v interface{}
		if rest, v, err = decodeScalarAscending(rest, pk.info.classes[name]); err != nil {
			return nil, conversionErrorf(err, "group-by property %q", name)
		}

		pk.groupBy[name] = v
	}

	if len(rest) != 0 {
		return nil, conversionErrorf(nil, "%d trailing bytes in key", len(rest))
	}

	return pk, nil
}
