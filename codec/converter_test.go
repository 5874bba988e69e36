package codec

import (
	"bytes"
	"errors"
	"math"
	"sort"
	"testing"
	"time"

	check "gopkg.in/check.v1"

	"github.com/mycok/uGraph/graph"
	"github.com/mycok/uGraph/schema"
)

var _ = check.Suite(new(ConverterTestSuite))

func Test(t *testing.T) {
	// Run all gocheck test-suites.
	check.TestingT(t)
}

type ConverterTestSuite struct {
	conv *Converter
}

func testSchema(vertexClass schema.Class) *schema.Schema {
	return &schema.Schema{
		Vertex: "vertex",
		Types: map[string]schema.TypeDefinition{
			"vertex": {Class: vertexClass},
			"count":  {Class: schema.ClassInt64, Aggregate: "sum"},
			"label":  {Class: schema.ClassString},
			"tags":   {Class: schema.ClassStringSet, Aggregate: "union"},
			"seen":   {Class: schema.ClassTimestamp, Aggregate: "max"},
			"weight": {Class: schema.ClassFloat64, Aggregate: "min"},
			"active": {Class: schema.ClassBool, Aggregate: "or"},
		},
		Entities: map[string]schema.ElementDefinition{
			"BasicEntity": {
				Properties: map[string]string{"count": "count", "tags": "tags", "active": "active"},
			},
		},
		Edges: map[string]schema.ElementDefinition{
			"BasicEdge": {
				Properties: map[string]string{
					"count": "count", "label": "label", "seen": "seen", "weight": "weight",
				},
				GroupBy:       []string{"label"},
				Bidirectional: true,
			},
			"OneWayEdge": {
				Properties: map[string]string{"count": "count"},
			},
		},
	}
}

func (s *ConverterTestSuite) SetUpTest(c *check.C) {
	conv, err := NewConverter(testSchema(schema.ClassInt64))
	c.Assert(err, check.IsNil)
	s.conv = conv
}

func (s *ConverterTestSuite) encodeOne(c *check.C, el graph.Element) Record {
	records, err := s.conv.Encode(el)
	c.Assert(err, check.IsNil)
	c.Assert(records, check.HasLen, 1)

	return records[0]
}

func (s *ConverterTestSuite) TestInvalidSchema(c *check.C) {
	sch := testSchema(schema.ClassStringSet)

	_, err := NewConverter(sch)
	c.Assert(errors.Is(err, schema.ErrInvalidSchema), check.Equals, true)
}

func (s *ConverterTestSuite) TestEntityRoundTrip(c *check.C) {
	entity := graph.NewEntity("BasicEntity", int64(-42), graph.Properties{
		"count":  int64(7),
		"tags":   graph.NewStringSet("a", "b\x00c"),
		"active": true,
	})

	rec := s.encodeOne(c, entity)
	got, err := s.conv.Decode(rec)
	c.Assert(err, check.IsNil)
	c.Assert(got, check.DeepEquals, graph.Element(entity))

	q, err := s.conv.Qualifier(rec.Key)
	c.Assert(err, check.IsNil)
	c.Assert(q, check.Equals, QualifierNone)
	c.Assert(q.Primary(), check.Equals, true)
}

func (s *ConverterTestSuite) TestEncodeCoercesLooseValues(c *check.C) {
	rec := s.encodeOne(c, graph.NewEntity("BasicEntity", 3, graph.Properties{
		"count": 1.0, "tags": []string{"x"},
	}))

	got, err := s.conv.Decode(rec)
	c.Assert(err, check.IsNil)
	c.Assert(got, check.DeepEquals, graph.Element(graph.NewEntity("BasicEntity", int64(3), graph.Properties{
		"count": int64(1), "tags": graph.NewStringSet("x"),
	})))
}

func (s *ConverterTestSuite) TestDirectedBidirectionalEdge(c *check.C) {
	edge := graph.NewEdge("BasicEdge", int64(1), int64(2), true, graph.Properties{
		"count":  int64(1),
		"label":  "knows",
		"seen":   time.Unix(1600000000, 5).UTC(),
		"weight": 0.5,
	})

	records, err := s.conv.Encode(edge)
	c.Assert(err, check.IsNil)
	c.Assert(records, check.HasLen, 2)
	c.Assert(records[0].Value, check.DeepEquals, records[1].Value)
	c.Assert(bytes.Equal(records[0].Key, records[1].Key), check.Equals, false)

	expQualifiers := []Qualifier{QualifierOutgoing, QualifierIncoming}
	for i, rec := range records {
		got, err := s.conv.Decode(rec)
		c.Assert(err, check.IsNil)
		c.Assert(got, check.DeepEquals, graph.Element(edge))

		q, err := s.conv.Qualifier(rec.Key)
		c.Assert(err, check.IsNil)
		c.Assert(q, check.Equals, expQualifiers[i])
	}

	outPrefix, err := s.conv.EdgePrefix(int64(1), int64(2))
	c.Assert(err, check.IsNil)
	c.Assert(bytes.HasPrefix(records[0].Key, outPrefix), check.Equals, true)

	inPrefix, err := s.conv.AdjacencyPrefix(int64(2))
	c.Assert(err, check.IsNil)
	c.Assert(bytes.HasPrefix(records[1].Key, inPrefix), check.Equals, true)
}

func (s *ConverterTestSuite) TestUndirectedEdgeIsNormalised(c *check.C) {
	records, err := s.conv.Encode(graph.NewEdge("BasicEdge", int64(9), int64(4), false, nil))
	c.Assert(err, check.IsNil)
	c.Assert(records, check.HasLen, 2)

	exp := graph.NewEdge("BasicEdge", int64(4), int64(9), false, graph.Properties{})
	for _, rec := range records {
		got, err := s.conv.Decode(rec)
		c.Assert(err, check.IsNil)
		c.Assert(got, check.DeepEquals, graph.Element(exp))
	}

	q, err := s.conv.Qualifier(records[1].Key)
	c.Assert(err, check.IsNil)
	c.Assert(q, check.Equals, QualifierUndirectedCopy)
	c.Assert(q.Primary(), check.Equals, false)
}

func (s *ConverterTestSuite) TestSingleIndexEdgeAndSelfLoop(c *check.C) {
	records, err := s.conv.Encode(graph.NewEdge("OneWayEdge", int64(1), int64(2), true, nil))
	c.Assert(err, check.IsNil)
	c.Assert(records, check.HasLen, 1)

	records, err = s.conv.Encode(graph.NewEdge("BasicEdge", int64(3), int64(3), true, nil))
	c.Assert(err, check.IsNil)
	c.Assert(records, check.HasLen, 1)
}

func (s *ConverterTestSuite) TestIdentifierOrderIsPreserved(c *check.C) {
	ints := []int64{math.MinInt64, -1000, -1, 0, 1, 255, 256, 1 << 40, math.MaxInt64}
	s.assertSortedKeys(c, s.conv, ints)

	floatConv, err := NewConverter(testSchema(schema.ClassFloat64))
	c.Assert(err, check.IsNil)
	s.assertSortedKeys(c, floatConv, []float64{math.Inf(-1), -10.5, -0.25, 0, 0.25, 3, 1e300, math.Inf(1)})

	stringConv, err := NewConverter(testSchema(schema.ClassString))
	c.Assert(err, check.IsNil)
	s.assertSortedKeys(c, stringConv, []string{"", "\x00", "\x00\x00", "a", "a\x00", "a\x00b", "ab", "b"})

	timeConv, err := NewConverter(testSchema(schema.ClassTimestamp))
	c.Assert(err, check.IsNil)
	s.assertSortedKeys(c, timeConv, []time.Time{
		time.Unix(-100, 0).UTC(), time.Unix(0, 0).UTC(), time.Unix(0, 1).UTC(), time.Unix(1700000000, 0).UTC(),
	})
}

func (s *ConverterTestSuite) assertSortedKeys(c *check.C, conv *Converter, ids interface{}) {
	var vertices []interface{}
	switch v := ids.(type) {
	case []int64:
		for _, id := range v {
			vertices = append(vertices, id)
		}
	case []float64:
		for _, id := range v {
			vertices = append(vertices, id)
		}
	case []string:
		for _, id := range v {
			vertices = append(vertices, id)
		}
	case []time.Time:
		for _, id := range v {
			vertices = append(vertices, id)
		}
	}

	var keys [][]byte
	for _, v := range vertices {
		for _, el := range []graph.Element{
			graph.NewEntity("BasicEntity", v, nil),
			graph.NewEdge("OneWayEdge", v, vertices[0], true, nil),
		} {
			records, err := conv.Encode(el)
			c.Assert(err, check.IsNil)
			keys = append(keys, records[0].Key)

			got, err := conv.Decode(records[0])
			c.Assert(err, check.IsNil)
			c.Assert(got.GetGroup(), check.Equals, el.GetGroup())
		}
	}

	c.Assert(sort.SliceIsSorted(keys, func(i, j int) bool {
		return bytes.Compare(keys[i], keys[j]) < 0
	}), check.Equals, true)
}

func (s *ConverterTestSuite) TestGroupByOrdering(c *check.C) {
	var keys [][]byte
	for _, props := range []graph.Properties{
		{},
		{"label": ""},
		{"label": "a"},
		{"label": "b"},
	} {
		records, err := s.conv.Encode(graph.NewEdge("BasicEdge", int64(1), int64(2), true, props))
		c.Assert(err, check.IsNil)
		keys = append(keys, records[0].Key)
	}

	for i := 1; i < len(keys); i++ {
		c.Assert(bytes.Compare(keys[i-1], keys[i]) < 0, check.Equals, true, check.Commentf("key %d", i))
	}
}

func (s *ConverterTestSuite) TestMergeValuesIsCommutativeAndAssociative(c *check.C) {
	edge := func(count int64, seen int64, weight float64) Record {
		records, err := s.conv.Encode(graph.NewEdge("BasicEdge", int64(1), int64(2), true, graph.Properties{
			"label": "x", "count": count, "seen": time.Unix(seen, 0).UTC(), "weight": weight,
		}))
		c.Assert(err, check.IsNil)

		return records[0]
	}

	x, y, z := edge(1, 10, 0.5), edge(2, 30, 0.25), edge(4, 20, 2)
	key := x.Key

	merge := func(a, b []byte) []byte {
		out, err := s.conv.MergeValues(key, a, b)
		c.Assert(err, check.IsNil)

		return out
	}

	c.Assert(merge(x.Value, y.Value), check.DeepEquals, merge(y.Value, x.Value))
	left := merge(merge(x.Value, y.Value), z.Value)
	right := merge(x.Value, merge(y.Value, z.Value))
	c.Assert(left, check.DeepEquals, right)

	got, err := s.conv.Decode(Record{Key: key, Value: left})
	c.Assert(err, check.IsNil)
	c.Assert(got.GetProperties(), check.DeepEquals, graph.Properties{
		"label": "x", "count": int64(7), "seen": time.Unix(30, 0).UTC(), "weight": 0.25,
	})
}

func (s *ConverterTestSuite) TestMergeSets(c *check.C) {
	a := s.encodeOne(c, graph.NewEntity("BasicEntity", int64(1), graph.Properties{"tags": graph.NewStringSet("b")}))
	b := s.encodeOne(c, graph.NewEntity("BasicEntity", int64(1), graph.Properties{"tags": graph.NewStringSet("a", "c")}))

	merged, err := s.conv.MergeValues(a.Key, a.Value, b.Value)
	c.Assert(err, check.IsNil)

	got, err := s.conv.Decode(Record{Key: a.Key, Value: merged})
	c.Assert(err, check.IsNil)
	c.Assert(got.GetProperties()["tags"], check.DeepEquals, graph.NewStringSet("a", "b", "c"))
}

func (s *ConverterTestSuite) TestEncodeErrors(c *check.C) {
	specs := []graph.Element{
		graph.NewEntity("Unknown", int64(1), nil),
		graph.NewEntity("BasicEntity", int64(1), graph.Properties{"label": "undeclared"}),
		graph.NewEntity("BasicEntity", int64(1), graph.Properties{"count": "NaN"}),
		graph.NewEntity("BasicEntity", "not-an-int", nil),
		graph.NewEntity("BasicEntity", nil, nil),
		graph.NewEntity("BasicEdge", int64(1), nil),
		graph.NewEdge("BasicEntity", int64(1), int64(2), true, nil),
	}

	for i, el := range specs {
		_, err := s.conv.Encode(el)
		c.Assert(errors.Is(err, ErrElementConversion), check.Equals, true, check.Commentf("spec %d: %v", i, err))

		var convErr *ConversionError
		c.Assert(errors.As(err, &convErr), check.Equals, true)
		c.Assert(convErr.Reason, check.Not(check.Equals), "")
	}
}

func (s *ConverterTestSuite) TestDecodeErrors(c *check.C) {
	rec := s.encodeOne(c, graph.NewEntity("BasicEntity", int64(1), graph.Properties{"count": int64(2)}))

	unknownMarker := append([]byte(nil), rec.Key...)
	unknownMarker[9], unknownMarker[10] = 0xff, 0xff

	trailingKey := append(append([]byte(nil), rec.Key...), 0x01)

	// Shrink the int64 payload of count from 8 to 7 bytes.
	shortValue := append([]byte(nil), rec.Value[:len(rec.Value)-1]...)
	shortValue[len(shortValue)-8] = intZero + 7

	wrongTag := append([]byte(nil), rec.Value...)
	wrongTag[2] = schema.ClassString.Tag()

	specs := []Record{
		{Key: unknownMarker, Value: rec.Value},
		{Key: trailingKey, Value: rec.Value},
		{Key: rec.Key[:4], Value: rec.Value},
		{Key: rec.Key, Value: shortValue},
		{Key: rec.Key, Value: wrongTag},
		{Key: rec.Key, Value: append(append([]byte(nil), rec.Value...), 0x00)},
		{Key: rec.Key, Value: nil},
	}

	for i, spec := range specs {
		_, err := s.conv.Decode(spec)
		c.Assert(errors.Is(err, ErrElementConversion), check.Equals, true, check.Commentf("spec %d: %v", i, err))
	}
}

func (s *ConverterTestSuite) TestSplitPoints(c *check.C) {
	var elements []graph.Element
	for i := int64(0); i < 12; i++ {
		elements = append(elements,
			graph.NewEntity("BasicEntity", i, nil),
			graph.NewEdge("OneWayEdge", i, i+1, true, nil),
		)
	}

	zero, err := s.conv.EncodeIdentifier(int64(0))
	c.Assert(err, check.IsNil)
	six, err := s.conv.EncodeIdentifier(int64(6))
	c.Assert(err, check.IsNil)

	for _, group := range []string{"BasicEntity", "OneWayEdge"} {
		splits, err := s.conv.CalculateSplitPoints(graph.NewElementIterator(elements...), group, 2, 2)
		c.Assert(err, check.IsNil)
		c.Assert(splits, check.DeepEquals, SplitPoints{string(zero): 0, string(six): 1})
		c.Assert(splits.Keys(), check.DeepEquals, [][]byte{zero, six})
		c.Assert(splits.NumPartitions(), check.Equals, 2)

		for v, exp := range map[int64]int{0: 0, 5: 0, 6: 1, 11: 1} {
			prefix, err := s.conv.EntityPrefix(v)
			c.Assert(err, check.IsNil)
			c.Assert(splits.Partition(prefix), check.Equals, exp, check.Commentf("vertex %d", v))
		}
	}
}

func (s *ConverterTestSuite) TestSplitPointsEdgeCases(c *check.C) {
	splits, err := s.conv.CalculateSplitPoints(graph.NewElementIterator(), "BasicEntity", 2, 2)
	c.Assert(err, check.IsNil)
	c.Assert(splits, check.HasLen, 0)
	c.Assert(splits.Partition([]byte("anything")), check.Equals, 0)

	// Duplicate identifiers collapse into a single split point.
	var dups []graph.Element
	for i := 0; i < 10; i++ {
		dups = append(dups, graph.NewEntity("BasicEntity", int64(7), nil))
	}

	splits, err = s.conv.CalculateSplitPoints(graph.NewElementIterator(dups...), "BasicEntity", 3, 1)
	c.Assert(err, check.IsNil)
	c.Assert(splits, check.HasLen, 1)

	_, err = s.conv.CalculateSplitPoints(graph.NewElementIterator(), "BasicEntity", 0, 1)
	c.Assert(err, check.NotNil)
}

func (s *ConverterTestSuite) TestUvarintRoundTripAndOrder(c *check.C) {
	values := []uint64{0, 1, 109, 110, 255, 256, 65535, 65536, 1 << 32, 1 << 56, math.MaxUint64}

	var prev []byte
	for _, v := range values {
		enc := EncodeUvarintAscending(nil, v)
		rest, got, err := DecodeUvarintAscending(enc)
		c.Assert(err, check.IsNil)
		c.Assert(rest, check.HasLen, 0)
		c.Assert(got, check.Equals, v)

		if prev != nil {
			c.Assert(bytes.Compare(prev, enc) < 0, check.Equals, true, check.Commentf("value %d", v))
		}

		prev = enc
	}

	_, _, err := DecodeUvarintAscending([]byte{0x10})
	c.Assert(err, check.NotNil)
}

func (s *ConverterTestSuite) TestPrefixEnd(c *check.C) {
	c.Assert(PrefixEnd([]byte{0x01, 0x02}), check.DeepEquals, []byte{0x01, 0x03})
	c.Assert(PrefixEnd([]byte{0x01, 0xff}), check.DeepEquals, []byte{0x02})
	c.Assert(PrefixEnd([]byte{0xff, 0xff}), check.IsNil)
}

func (s *ConverterTestSuite) TestDecodeRecordIdentity(c *check.C) {
	knows := graph.NewEdge("BasicEdge", int64(1), int64(2), true, graph.Properties{"label": "knows", "count": int64(1)})
	likes := graph.NewEdge("BasicEdge", int64(1), int64(2), true, graph.Properties{"label": "likes", "count": int64(1)})

	a := s.encodeOne(c, graph.NewEntity("BasicEntity", int64(1), nil))
	da, err := s.conv.DecodeRecord(a)
	c.Assert(err, check.IsNil)
	c.Assert(da.Identity, check.DeepEquals, a.Key)
	c.Assert(da.Qualifier, check.Equals, QualifierNone)

	knowsRecs, err := s.conv.Encode(knows)
	c.Assert(err, check.IsNil)
	likesRecs, err := s.conv.Encode(likes)
	c.Assert(err, check.IsNil)

	dk, err := s.conv.DecodeRecord(knowsRecs[0])
	c.Assert(err, check.IsNil)
	dl, err := s.conv.DecodeRecord(likesRecs[0])
	c.Assert(err, check.IsNil)

	c.Assert(dk.Qualifier, check.Equals, QualifierOutgoing)
	c.Assert(dk.Identity, check.DeepEquals, dl.Identity)
	c.Assert(bytes.HasPrefix(knowsRecs[0].Key, dk.Identity), check.Equals, true)
	c.Assert(len(dk.Identity) < len(knowsRecs[0].Key), check.Equals, true)

	dr, err := s.conv.DecodeRecord(knowsRecs[1])
	c.Assert(err, check.IsNil)
	c.Assert(dr.Qualifier, check.Equals, QualifierIncoming)
	c.Assert(dr.Element, check.DeepEquals, dk.Element)
}
