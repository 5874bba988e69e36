package operation

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/mycok/uGraph/graph"
	"github.com/mycok/uGraph/schema"
)

// wireVersion is bumped whenever the encoding of an allow-listed operation
// changes incompatibly.
const wireVersion = 1

type wireChain struct {
	Version    int               `msgpack:"version"`
	Operations []wireOperation   `msgpack:"operations"`
	Options    map[string]string `msgpack:"options,omitempty"`
}

type wireOperation struct {
	Kind Kind               `msgpack:"kind"`
	Body msgpack.RawMessage `msgpack:"body"`
}

// WireElement is the serialisable form of a graph element.
type WireElement struct {
	Edge        bool                   `msgpack:"edge,omitempty"`
	Group       string                 `msgpack:"group"`
	Vertex      interface{}            `msgpack:"vertex"`
	Source      interface{}            `msgpack:"source"`
	Destination interface{}            `msgpack:"destination"`
	Directed    bool                   `msgpack:"directed,omitempty"`
	Properties  map[string]interface{} `msgpack:"properties,omitempty"`
}

// WireID is the serialisable form of an element id.
type WireID struct {
	Edge        bool        `msgpack:"edge,omitempty"`
	Vertex      interface{} `msgpack:"vertex"`
	Source      interface{} `msgpack:"source"`
	Destination interface{} `msgpack:"destination"`
	Directed    bool        `msgpack:"directed,omitempty"`
}

type (
	addElementsBody struct {
		Elements    []WireElement `msgpack:"elements"`
		SkipInvalid bool          `msgpack:"skipInvalid,omitempty"`
	}

	getElementsBody struct {
		Seeds        []WireID     `msgpack:"seeds,omitempty"`
		View         *View        `msgpack:"view,omitempty"`
		Direction    Direction    `msgpack:"direction,omitempty"`
		SeedMatching SeedMatching `msgpack:"seedMatching,omitempty"`
	}

	getAllElementsBody struct {
		View *View `msgpack:"view,omitempty"`
	}

	getAdjacentIDsBody struct {
		Seeds     []WireID  `msgpack:"seeds,omitempty"`
		View      *View     `msgpack:"view,omitempty"`
		Direction Direction `msgpack:"direction,omitempty"`
	}

	hopBody struct {
		View         *View        `msgpack:"view,omitempty"`
		Direction    Direction    `msgpack:"direction,omitempty"`
		SeedMatching SeedMatching `msgpack:"seedMatching,omitempty"`
	}

	pathBody struct {
		Seeds []WireID  `msgpack:"seeds,omitempty"`
		Hops  []hopBody `msgpack:"hops"`
	}

	limitBody struct {
		N int `msgpack:"n"`
	}

	generateSplitPointsBody struct {
		Group      string `msgpack:"group"`
		NumSplits  int    `msgpack:"numSplits"`
		SampleRate int    `msgpack:"sampleRate"`
	}

	addGraphBody struct {
		GraphID            string            `msgpack:"graphId"`
		Schema             []byte            `msgpack:"schema,omitempty"`
		Properties         map[string]string `msgpack:"properties,omitempty"`
		ParentSchemaIDs    []string          `msgpack:"parentSchemaIds,omitempty"`
		ParentPropertiesID string            `msgpack:"parentPropertiesId,omitempty"`
		GraphAuths         []string          `msgpack:"graphAuths,omitempty"`
	}

	removeGraphBody struct {
		GraphID string `msgpack:"graphId"`
	}

	emptyBody struct{}
)

type wireCodec struct {
	encode func(op Operation) (interface{}, error)
	decode func(raw []byte, sch *schema.Schema) (Operation, error)
}

// allowList maps every kind that may cross the wire to its codec. Kinds that
// are absent cannot be decoded.
var allowList = map[Kind]wireCodec{
	KindAddElements: {
		encode: func(op Operation) (interface{}, error) {
			add := op.(*AddElements)
			body := addElementsBody{SkipInvalid: add.SkipInvalid}
			for _, el := range add.Elements {
				body.Elements = append(body.Elements, ToWireElement(el))
			}

			return body, nil
		},
		decode: func(raw []byte, sch *schema.Schema) (Operation, error) {
			var body addElementsBody
			if err := msgpack.Unmarshal(raw, &body); err != nil {
				return nil, err
			}

			op := &AddElements{SkipInvalid: body.SkipInvalid}
			for _, w := range body.Elements {
				el, err := w.Element(sch)
				if err != nil {
					return nil, err
				}

				op.Elements = append(op.Elements, el)
			}

			return op, nil
		},
	},
	KindGetElements: {
		encode: func(op Operation) (interface{}, error) {
			get := op.(*GetElements)

			return getElementsBody{
				Seeds:        toWireIDs(get.Seeds),
				View:         wireView(get.View),
				Direction:    get.Direction,
				SeedMatching: get.SeedMatching,
			}, nil
		},
		decode: func(raw []byte, sch *schema.Schema) (Operation, error) {
			var body getElementsBody
			if err := msgpack.Unmarshal(raw, &body); err != nil {
				return nil, err
			}

			seeds, err := fromWireIDs(body.Seeds, sch)
			if err != nil {
				return nil, err
			} else if err = body.View.coerce(sch); err != nil {
				return nil, err
			}

			return &GetElements{
				Seeds:        seeds,
				View:         body.View,
				Direction:    body.Direction,
				SeedMatching: body.SeedMatching,
			}, nil
		},
	},
	KindGetAllElements: {
		encode: func(op Operation) (interface{}, error) {
			return getAllElementsBody{View: wireView(op.(*GetAllElements).View)}, nil
		},
		decode: func(raw []byte, sch *schema.Schema) (Operation, error) {
			var body getAllElementsBody
			if err := msgpack.Unmarshal(raw, &body); err != nil {
				return nil, err
			} else if err = body.View.coerce(sch); err != nil {
				return nil, err
			}

			return &GetAllElements{View: body.View}, nil
		},
	},
	KindGetAdjacentIDs: {
		encode: func(op Operation) (interface{}, error) {
			adj := op.(*GetAdjacentIDs)

			return getAdjacentIDsBody{
				Seeds:     toWireIDs(adj.Seeds),
				View:      wireView(adj.View),
				Direction: adj.Direction,
			}, nil
		},
		decode: func(raw []byte, sch *schema.Schema) (Operation, error) {
			var body getAdjacentIDsBody
			if err := msgpack.Unmarshal(raw, &body); err != nil {
				return nil, err
			}

			seeds, err := fromWireIDs(body.Seeds, sch)
			if err != nil {
				return nil, err
			} else if err = body.View.coerce(sch); err != nil {
				return nil, err
			}

			return &GetAdjacentIDs{Seeds: seeds, View: body.View, Direction: body.Direction}, nil
		},
	},
	KindPath: {
		encode: func(op Operation) (interface{}, error) {
			path := op.(*Path)
			body := pathBody{Seeds: toWireIDs(path.Seeds)}
			for _, hop := range path.Hops {
				body.Hops = append(body.Hops, hopBody{
					View:         wireView(hop.View),
					Direction:    hop.Direction,
					SeedMatching: hop.SeedMatching,
				})
			}

			return body, nil
		},
		decode: func(raw []byte, sch *schema.Schema) (Operation, error) {
			var body pathBody
			if err := msgpack.Unmarshal(raw, &body); err != nil {
				return nil, err
			}

			seeds, err := fromWireIDs(body.Seeds, sch)
			if err != nil {
				return nil, err
			}

			op := &Path{Seeds: seeds}
			for i, hop := range body.Hops {
				if err = hop.View.coerce(sch); err != nil {
					return nil, fmt.Errorf("hop %d: %w", i, err)
				}

				op.Hops = append(op.Hops, &GetElements{
					View:         hop.View,
					Direction:    hop.Direction,
					SeedMatching: hop.SeedMatching,
				})
			}

			return op, nil
		},
	},
	KindCount: {
		encode: func(Operation) (interface{}, error) { return emptyBody{}, nil },
		decode: func([]byte, *schema.Schema) (Operation, error) { return &CountElements{}, nil },
	},
	KindExists: {
		encode: func(Operation) (interface{}, error) { return emptyBody{}, nil },
		decode: func([]byte, *schema.Schema) (Operation, error) { return &Exists{}, nil },
	},
	KindLimit: {
		encode: func(op Operation) (interface{}, error) { return limitBody{N: op.(*Limit).N}, nil },
		decode: func(raw []byte, _ *schema.Schema) (Operation, error) {
			var body limitBody
			if err := msgpack.Unmarshal(raw, &body); err != nil {
				return nil, err
			}

			return &Limit{N: body.N}, nil
		},
	},
	KindGenerateSplitPoints: {
		encode: func(op Operation) (interface{}, error) {
			gen := op.(*GenerateSplitPoints)

			return generateSplitPointsBody{
				Group: gen.Group, NumSplits: gen.NumSplits, SampleRate: gen.SampleRate,
			}, nil
		},
		decode: func(raw []byte, _ *schema.Schema) (Operation, error) {
			var body generateSplitPointsBody
			if err := msgpack.Unmarshal(raw, &body); err != nil {
				return nil, err
			}

			return &GenerateSplitPoints{
				Group: body.Group, NumSplits: body.NumSplits, SampleRate: body.SampleRate,
			}, nil
		},
	},
	KindAddGraph: {
		encode: func(op Operation) (interface{}, error) {
			add := op.(*AddGraph)
			body := addGraphBody{
				GraphID:            add.GraphID,
				Properties:         add.Properties,
				ParentSchemaIDs:    add.ParentSchemaIDs,
				ParentPropertiesID: add.ParentPropertiesID,
				GraphAuths:         add.GraphAuths,
			}

			if add.Schema != nil {
				data, err := add.Schema.ToJSON()
				if err != nil {
					return nil, err
				}

				body.Schema = data
			}

			return body, nil
		},
		decode: func(raw []byte, _ *schema.Schema) (Operation, error) {
			var body addGraphBody
			if err := msgpack.Unmarshal(raw, &body); err != nil {
				return nil, err
			}

			op := &AddGraph{
				GraphID:            body.GraphID,
				Properties:         body.Properties,
				ParentSchemaIDs:    body.ParentSchemaIDs,
				ParentPropertiesID: body.ParentPropertiesID,
				GraphAuths:         body.GraphAuths,
			}

			if len(body.Schema) != 0 {
				s, err := schema.FromJSON(body.Schema)
				if err != nil {
					return nil, err
				}

				op.Schema = s
			}

			return op, nil
		},
	},
	KindRemoveGraph: {
		encode: func(op Operation) (interface{}, error) {
			return removeGraphBody{GraphID: op.(*RemoveGraph).GraphID}, nil
		},
		decode: func(raw []byte, _ *schema.Schema) (Operation, error) {
			var body removeGraphBody
			if err := msgpack.Unmarshal(raw, &body); err != nil {
				return nil, err
			}

			return &RemoveGraph{GraphID: body.GraphID}, nil
		},
	},
	KindGetAllGraphIDs: {
		encode: func(Operation) (interface{}, error) { return emptyBody{}, nil },
		decode: func([]byte, *schema.Schema) (Operation, error) { return &GetAllGraphIDs{}, nil },
	},
}

// MarshalChain encodes a chain as a msgpack document in which every
// operation is a {kind, body} pair.
func MarshalChain(c *Chain) ([]byte, error) {
	wc := wireChain{Version: wireVersion, Options: c.Options()}
	for i, op := range c.operations {
		entry, ok := allowList[op.Kind()]
		if !ok {
			return nil, fmt.Errorf("marshal operation %d (%s): %w", i, op.Kind(), ErrNotSerialisable)
		}

		body, err := entry.encode(op)
		if err != nil {
			return nil, fmt.Errorf("marshal operation %d (%s): %w", i, op.Kind(), err)
		}

		raw, err := msgpack.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal operation %d (%s): %w", i, op.Kind(), err)
		}

		wc.Operations = append(wc.Operations, wireOperation{Kind: op.Kind(), Body: raw})
	}

	data, err := msgpack.Marshal(wc)
	if err != nil {
		return nil, fmt.Errorf("marshal chain: %w", err)
	}

	return data, nil
}

// UnmarshalChain decodes a chain produced by MarshalChain. Only allow-listed
// kinds are instantiated. When sch is not nil element identifiers, property
// values and filter values are converted to the classes it declares. The
// decoded chain is type-checked again.
func UnmarshalChain(data []byte, sch *schema.Schema) (*Chain, error) {
	var wc wireChain
	if err := msgpack.Unmarshal(data, &wc); err != nil {
		return nil, fmt.Errorf("unmarshal chain: %w", err)
	}

	if wc.Version != wireVersion {
		return nil, fmt.Errorf("unmarshal chain: unsupported version %d", wc.Version)
	}

	ops := make([]Operation, 0, len(wc.Operations))
	for i, wo := range wc.Operations {
		entry, ok := allowList[wo.Kind]
		if !ok {
			return nil, fmt.Errorf("unmarshal operation %d: %w: %q", i, ErrUnknownKind, wo.Kind)
		}

		op, err := entry.decode(wo.Body, sch)
		if err != nil {
			return nil, fmt.Errorf("unmarshal operation %d (%s): %w", i, wo.Kind, err)
		}

		ops = append(ops, op)
	}

	c, err := NewChain(ops...)
	if err != nil {
		return nil, err
	}

	for k, v := range wc.Options {
		c.WithOption(k, v)
	}

	return c, nil
}

// ToWireElement returns the serialisable form of el.
func ToWireElement(el graph.Element) WireElement {
	w := WireElement{Group: el.GetGroup()}
	if props := el.GetProperties(); len(props) != 0 {
		w.Properties = make(map[string]interface{}, len(props))
		for k, v := range props {
			w.Properties[k] = wireValue(v)
		}
	}

	switch e := el.(type) {
	case *graph.Entity:
		w.Vertex = wireValue(e.Vertex)
	case *graph.Edge:
		w.Edge = true
		w.Source = wireValue(e.Source)
		w.Destination = wireValue(e.Destination)
		w.Directed = e.Directed
	}

	return w
}

// Element converts w back into a graph element. When sch is not nil and
// declares the element group, values are converted to their declared
// classes.
func (w WireElement) Element(sch *schema.Schema) (graph.Element, error) {
	props := graph.Properties(w.Properties)
	if props == nil {
		props = graph.Properties{}
	}

	if sch != nil && sch.HasGroup(w.Group) {
		var err error
		if props, err = sch.CoerceProperties(w.Group, props); err != nil {
			return nil, err
		}
	}

	if !w.Edge {
		vertex, err := coerceVertex(sch, w.Vertex)
		if err != nil {
			return nil, err
		}

		return graph.NewEntity(w.Group, vertex, props), nil
	}

	src, err := coerceVertex(sch, w.Source)
	if err != nil {
		return nil, err
	}

	dest, err := coerceVertex(sch, w.Destination)
	if err != nil {
		return nil, err
	}

	return graph.NewEdge(w.Group, src, dest, w.Directed, props), nil
}

// ToWireID returns the serialisable form of id.
func ToWireID(id graph.ElementID) WireID {
	switch v := id.(type) {
	case graph.EdgeID:
		return WireID{
			Edge:        true,
			Source:      wireValue(v.Source),
			Destination: wireValue(v.Destination),
			Directed:    v.Directed,
		}
	case graph.EntityID:
		return WireID{Vertex: wireValue(v.Vertex)}
	default:
		return WireID{}
	}
}

// ElementID converts w back into an element id.
func (w WireID) ElementID(sch *schema.Schema) (graph.ElementID, error) {
	if !w.Edge {
		vertex, err := coerceVertex(sch, w.Vertex)
		if err != nil {
			return nil, err
		}

		return graph.EntityID{Vertex: vertex}, nil
	}

	src, err := coerceVertex(sch, w.Source)
	if err != nil {
		return nil, err
	}

	dest, err := coerceVertex(sch, w.Destination)
	if err != nil {
		return nil, err
	}

	return graph.EdgeID{Source: src, Destination: dest, Directed: w.Directed}, nil
}

func toWireIDs(ids []graph.ElementID) []WireID {
	var out []WireID
	for _, id := range ids {
		out = append(out, ToWireID(id))
	}

	return out
}

func fromWireIDs(ws []WireID, sch *schema.Schema) ([]graph.ElementID, error) {
	var out []graph.ElementID
	for _, w := range ws {
		id, err := w.ElementID(sch)
		if err != nil {
			return nil, err
		}

		out = append(out, id)
	}

	return out, nil
}

func coerceVertex(sch *schema.Schema, v interface{}) (interface{}, error) {
	if sch == nil || v == nil {
		return v, nil
	}

	return sch.CoerceVertex(v)
}

// wireView returns a copy of v whose filter values can be encoded.
func wireView(v *View) *View {
	if v == nil {
		return nil
	}

	out := &View{
		Groups:            v.Groups,
		Summarise:         v.Summarise,
		Properties:        v.Properties,
		ExcludeProperties: v.ExcludeProperties,
	}

	for _, f := range v.PreAggregationFilters {
		f.Value = wireValue(f.Value)
		out.PreAggregationFilters = append(out.PreAggregationFilters, f)
	}

	for _, f := range v.PostAggregationFilters {
		f.Value = wireValue(f.Value)
		out.PostAggregationFilters = append(out.PostAggregationFilters, f)
	}

	return out
}

// wireValue maps values without a native msgpack representation onto ones
// that schema classes can coerce back.
func wireValue(v interface{}) interface{} {
	switch val := v.(type) {
	case uuid.UUID:
		return val[:]
	case graph.StringSet:
		return val.Sorted()
	default:
		return v
	}
}
