/*
	schema package describes the element groups of a graph: the class of every
	property, the properties that take part in element identity and the
	aggregation rules used to merge elements that share an identity.
*/

package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/mycok/uGraph/graph"
)

// TypeDefinition declares a named property type.
type TypeDefinition struct {
	Class Class `json:"class" yaml:"class"`

	// Aggregate names the default aggregator used for properties of this
	// type. Element definitions may override it per property.
	Aggregate string `json:"aggregate,omitempty" yaml:"aggregate,omitempty"`

	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// ElementDefinition describes a single entity or edge group.
type ElementDefinition struct {
	// Properties maps a property name to a type name declared in
	// Schema.Types.
	Properties map[string]string `json:"properties,omitempty" yaml:"properties,omitempty"`

	// GroupBy lists, in key order, the properties that take part in element
	// identity.
	GroupBy []string `json:"groupBy,omitempty" yaml:"groupBy,omitempty"`

	// Aggregate maps a property name to the aggregator that overrides the
	// default of its type.
	Aggregate map[string]string `json:"aggregate,omitempty" yaml:"aggregate,omitempty"`

	// Bidirectional requests that directed edges of the group are indexed
	// by both end-points. It is ignored for entities.
	Bidirectional bool `json:"bidirectional,omitempty" yaml:"bidirectional,omitempty"`

	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// IsGroupBy reports whether prop takes part in element identity.
func (d ElementDefinition) IsGroupBy(prop string) bool {
	for _, g := range d.GroupBy {
		if g == prop {
			return true
		}
	}

	return false
}

// PropertyNames returns the declared property names in ascending order.
func (d ElementDefinition) PropertyNames() []string {
	names := make([]string, 0, len(d.Properties))
	for name := range d.Properties {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (d ElementDefinition) clone() ElementDefinition {
	out := ElementDefinition{
		Properties:    make(map[string]string, len(d.Properties)),
		GroupBy:       append([]string(nil), d.GroupBy...),
		Aggregate:     make(map[string]string, len(d.Aggregate)),
		Bidirectional: d.Bidirectional,
		Description:   d.Description,
	}

	for k, v := range d.Properties {
		out.Properties[k] = v
	}

	for k, v := range d.Aggregate {
		out.Aggregate[k] = v
	}

	return out
}

// Schema describes the groups of a graph. A schema bound to a store must be
// treated as read-only.
type Schema struct {
	// Vertex names the type of every vertex identifier.
	Vertex string `json:"vertex" yaml:"vertex"`

	Types    map[string]TypeDefinition    `json:"types" yaml:"types"`
	Entities map[string]ElementDefinition `json:"entities,omitempty" yaml:"entities,omitempty"`
	Edges    map[string]ElementDefinition `json:"edges,omitempty" yaml:"edges,omitempty"`
}

// FromJSON parses a JSON encoded schema. The result is not validated.
func FromJSON(data []byte) (*Schema, error) {
	s := new(Schema)
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("schema from json: %w", err)
	}

	return s, nil
}

// ToJSON returns the JSON encoding of the schema.
func (s *Schema) ToJSON() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("schema to json: %w", err)
	}

	return data, nil
}

// Clone returns a deep-copy of the schema.
func (s *Schema) Clone() *Schema {
	return Merge(s)
}

// Merge combines schemas in order. When the same type or group is defined
// by more than one schema the first definition wins.
func Merge(schemas ...*Schema) *Schema {
	out := &Schema{
		Types:    make(map[string]TypeDefinition),
		Entities: make(map[string]ElementDefinition),
		Edges:    make(map[string]ElementDefinition),
	}

	for _, s := range schemas {
		if s == nil {
			continue
		}

		if out.Vertex == "" {
			out.Vertex = s.Vertex
		}

		for name, def := range s.Types {
			if _, exists := out.Types[name]; !exists {
				out.Types[name] = def
			}
		}

		for group, def := range s.Entities {
			if !out.HasGroup(group) {
				out.Entities[group] = def.clone()
			}
		}

		for group, def := range s.Edges {
			if !out.HasGroup(group) {
				out.Edges[group] = def.clone()
			}
		}
	}

	return out
}

// HasGroup reports whether group is defined as an entity or an edge group.
func (s *Schema) HasGroup(group string) bool {
	_, _, ok := s.Definition(group)

	return ok
}

// Definition returns the definition of group and whether it is an edge group.
func (s *Schema) Definition(group string) (def ElementDefinition, isEdge, ok bool) {
	if def, ok = s.Entities[group]; ok {
		return def, false, true
	}

	def, ok = s.Edges[group]

	return def, ok, ok
}

// Groups returns every entity and edge group name in ascending order.
func (s *Schema) Groups() []string {
	groups := make([]string, 0, len(s.Entities)+len(s.Edges))
	for g := range s.Entities {
		groups = append(groups, g)
	}

	for g := range s.Edges {
		if _, dup := s.Entities[g]; !dup {
			groups = append(groups, g)
		}
	}

	sort.Strings(groups)

	return groups
}

// VertexClass returns the class of vertex identifiers.
func (s *Schema) VertexClass() Class {
	return s.Types[s.Vertex].Class
}

// PropertyClass returns the class of prop within group.
func (s *Schema) PropertyClass(group, prop string) (Class, bool) {
	def, _, ok := s.Definition(group)
	if !ok {
		return "", false
	}

	typeName, ok := def.Properties[prop]
	if !ok {
		return "", false
	}

	td, ok := s.Types[typeName]

	return td.Class, ok
}

// AggregatorFor returns the aggregator that merges prop within group.
func (s *Schema) AggregatorFor(group, prop string) (Aggregator, bool) {
	def, _, ok := s.Definition(group)
	if !ok {
		return nil, false
	}

	name := def.Aggregate[prop]
	if name == "" {
		typeName, declared := def.Properties[prop]
		if !declared {
			return nil, false
		}

		name = s.Types[typeName].Aggregate
	}

	return LookupAggregator(name)
}

// Aggregate merges the properties of two elements of group that share the
// same identity. Group-by properties are taken from a.
func (s *Schema) Aggregate(group string, a, b graph.Properties) (graph.Properties, error) {
	def, _, ok := s.Definition(group)
	if !ok {
		return nil, fmt.Errorf("aggregate: unknown group %q", group)
	}

	out := make(graph.Properties, len(def.Properties))
	for _, prop := range def.PropertyNames() {
		if def.IsGroupBy(prop) {
			if v, exists := a[prop]; exists {
				out[prop] = v
			}

			continue
		}

		agg, ok := s.AggregatorFor(group, prop)
		if !ok {
			return nil, fmt.Errorf("aggregate: no aggregator for %s.%s", group, prop)
		}

		merged, err := agg.Merge(a[prop], b[prop])
		if err != nil {
			return nil, fmt.Errorf("aggregate %s.%s: %w", group, prop, err)
		}

		if merged != nil {
			out[prop] = merged
		}
	}

	return out, nil
}

// CoerceProperties returns a copy of props with every value converted to the
// canonical Go type of its declared class. Undeclared properties are
// rejected.
func (s *Schema) CoerceProperties(group string, props graph.Properties) (graph.Properties, error) {
	out := make(graph.Properties, len(props))
	for name, v := range props {
		class, ok := s.PropertyClass(group, name)
		if !ok {
			return nil, fmt.Errorf("coerce: property %q is not declared by group %q", name, group)
		}

		coerced, err := class.Coerce(v)
		if err != nil {
			return nil, fmt.Errorf("coerce %s.%s: %w", group, name, err)
		}

		out[name] = coerced
	}

	return out, nil
}

// CoerceVertex converts v to the canonical Go type of vertex identifiers.
func (s *Schema) CoerceVertex(v interface{}) (interface{}, error) {
	return s.VertexClass().Coerce(v)
}

// Validate checks the schema for consistency and reports every problem it
// finds as a single *ValidationError.
func (s *Schema) Validate() error {
	var err error

	for name, td := range s.Types {
		if !td.Class.Valid() {
			err = multierror.Append(err, fmt.Errorf("type %q: unknown class %q", name, td.Class))

			continue
		}

		if td.Aggregate == "" {
			continue
		}

		agg, ok := LookupAggregator(td.Aggregate)
		if !ok {
			err = multierror.Append(err, fmt.Errorf("type %q: unknown aggregator %q", name, td.Aggregate))
		} else if !agg.Supports(td.Class) {
			err = multierror.Append(err, fmt.Errorf(
				"type %q: aggregator %q does not support class %q", name, td.Aggregate, td.Class,
			))
		}
	}

	if s.Vertex == "" {
		err = multierror.Append(err, fmt.Errorf("vertex type is not set"))
	} else if td, ok := s.Types[s.Vertex]; !ok {
		err = multierror.Append(err, fmt.Errorf("vertex type %q is not declared", s.Vertex))
	} else if !td.Class.Scalar() {
		err = multierror.Append(err, fmt.Errorf(
			"vertex type %q: class %q cannot be used as an identifier", s.Vertex, td.Class,
		))
	}

	if len(s.Entities)+len(s.Edges) == 0 {
		err = multierror.Append(err, fmt.Errorf("no groups defined"))
	} else if len(s.Entities)+len(s.Edges) > math.MaxUint16 {
		err = multierror.Append(err, fmt.Errorf("too many groups"))
	}

	for group, def := range s.Entities {
		if _, dup := s.Edges[group]; dup {
			err = multierror.Append(err, fmt.Errorf("group %q is defined as both an entity and an edge", group))
		}

		if def.Bidirectional {
			err = multierror.Append(err, fmt.Errorf("entity group %q cannot be bidirectional", group))
		}

		err = s.validateDefinition(err, group, def)
	}

	for group, def := range s.Edges {
		err = s.validateDefinition(err, group, def)
	}

	if err != nil {
		return &ValidationError{Problems: err.(*multierror.Error)}
	}

	return nil
}

func (s *Schema) validateDefinition(err error, group string, def ElementDefinition) error {
	if group == "" {
		err = multierror.Append(err, fmt.Errorf("group name cannot be empty"))
	}

	for prop, typeName := range def.Properties {
		if _, ok := s.Types[typeName]; !ok {
			err = multierror.Append(err, fmt.Errorf(
				"group %q: property %q has undeclared type %q", group, prop, typeName,
			))
		}
	}

	seen := make(map[string]bool, len(def.GroupBy))
	for _, prop := range def.GroupBy {
		if seen[prop] {
			err = multierror.Append(err, fmt.Errorf("group %q: group-by property %q listed twice", group, prop))

			continue
		}

		seen[prop] = true

		typeName, ok := def.Properties[prop]
		if !ok {
			err = multierror.Append(err, fmt.Errorf("group %q: group-by property %q is not declared", group, prop))

			continue
		}

		if td, ok := s.Types[typeName]; ok && !td.Class.Scalar() {
			err = multierror.Append(err, fmt.Errorf(
				"group %q: group-by property %q has non-scalar class %q", group, prop, td.Class,
			))
		}

		if _, ok := def.Aggregate[prop]; ok {
			err = multierror.Append(err, fmt.Errorf(
				"group %q: group-by property %q cannot be aggregated", group, prop,
			))
		}
	}

	for prop, name := range def.Aggregate {
		if _, ok := def.Properties[prop]; !ok {
			err = multierror.Append(err, fmt.Errorf(
				"group %q: aggregator %q references undeclared property %q", group, name, prop,
			))
		}
	}

	for _, prop := range def.PropertyNames() {
		if def.IsGroupBy(prop) {
			continue
		}

		td, ok := s.Types[def.Properties[prop]]
		if !ok {
			continue
		}

		name := def.Aggregate[prop]
		if name == "" {
			name = td.Aggregate
		}

		if name == "" {
			err = multierror.Append(err, fmt.Errorf("group %q: property %q has no aggregator", group, prop))

			continue
		}

		agg, ok := LookupAggregator(name)
		if !ok {
			err = multierror.Append(err, fmt.Errorf(
				"group %q: property %q references unknown aggregator %q", group, prop, name,
			))
		} else if !agg.Supports(td.Class) {
			err = multierror.Append(err, fmt.Errorf(
				"group %q: aggregator %q is not compatible with class %q of property %q",
				group, name, td.Class, prop,
			))
		}
	}

	return err
}
