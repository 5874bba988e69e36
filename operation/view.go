package operation

import (
	"fmt"
	"strings"

	"github.com/mycok/uGraph/graph"
	"github.com/mycok/uGraph/schema"
	"github.com/mycok/uGraph/store/trait"
)

// Predicate names a comparison applied by a Filter.
type Predicate string

// Supported predicates.
const (
	Eq       Predicate = "eq"
	Ne       Predicate = "ne"
	Lt       Predicate = "lt"
	Le       Predicate = "le"
	Gt       Predicate = "gt"
	Ge       Predicate = "ge"
	Contains Predicate = "contains"
)

// Filter tests a single property of an element. Elements that lack the
// property never pass.
type Filter struct {
	Property  string      `msgpack:"property"`
	Predicate Predicate   `msgpack:"predicate"`
	Value     interface{} `msgpack:"value"`
}

// Validate checks that the filter is well formed.
func (f Filter) Validate() error {
	if f.Property == "" {
		return fmt.Errorf("filter: property is required")
	}

	switch f.Predicate {
	case Eq, Ne, Lt, Le, Gt, Ge, Contains:
	default:
		return fmt.Errorf("filter on %q: unknown predicate %q", f.Property, f.Predicate)
	}

	return nil
}

// Test reports whether props pass the filter.
func (f Filter) Test(props graph.Properties) (bool, error) {
	v, ok := props[f.Property]
	if !ok || v == nil {
		return false, nil
	}

	if f.Predicate == Contains {
		switch container := v.(type) {
		case graph.StringSet:
			s, ok := f.Value.(string)
			return ok && container.Contains(s), nil
		case string:
			s, ok := f.Value.(string)
			return ok && strings.Contains(container, s), nil
		default:
			return false, fmt.Errorf("filter on %q: contains is not supported for %T", f.Property, v)
		}
	}

	cmp, err := schema.Compare(v, f.Value)
	if err != nil {
		return false, fmt.Errorf("filter on %q: %w", f.Property, err)
	}

	switch f.Predicate {
	case Eq:
		return cmp == 0, nil
	case Ne:
		return cmp != 0, nil
	case Lt:
		return cmp < 0, nil
	case Le:
		return cmp <= 0, nil
	case Gt:
		return cmp > 0, nil
	case Ge:
		return cmp >= 0, nil
	default:
		return false, fmt.Errorf("filter on %q: unknown predicate %q", f.Property, f.Predicate)
	}
}

// View restricts and shapes the elements returned by a query.
type View struct {
	// Groups limits the query to the listed groups. An empty list selects
	// every group.
	Groups []string `msgpack:"groups,omitempty"`

	// PreAggregationFilters are applied to stored elements before they are
	// summarised.
	PreAggregationFilters []Filter `msgpack:"preAggregationFilters,omitempty"`

	// PostAggregationFilters are applied to the elements returned to the
	// caller.
	PostAggregationFilters []Filter `msgpack:"postAggregationFilters,omitempty"`

	// Summarise merges elements that share a group and an identity but differ
	// in their group-by values. The group-by properties are dropped from the
	// summarised element.
	Summarise bool `msgpack:"summarise,omitempty"`

	// Properties lists, per group, the only properties returned for the
	// elements of that group. Groups without an entry keep every property.
	Properties map[string][]string `msgpack:"properties,omitempty"`

	// ExcludeProperties lists, per group, properties removed from the
	// elements of that group.
	ExcludeProperties map[string][]string `msgpack:"excludeProperties,omitempty"`
}

// RequiredTraits returns the store traits needed to apply the view.
func (v *View) RequiredTraits() trait.Set {
	if v == nil {
		return trait.NewSet()
	}

	var traits []trait.Trait
	if len(v.PreAggregationFilters) != 0 {
		traits = append(traits, trait.PreAggregationFiltering)
	}

	if len(v.PostAggregationFilters) != 0 {
		traits = append(traits, trait.PostAggregationFiltering)
	}

	if v.Summarise {
		traits = append(traits, trait.QueryAggregation)
	}

	return trait.NewSet(traits...)
}

// Validate checks every filter of the view.
func (v *View) Validate() error {
	if v == nil {
		return nil
	}

	for _, f := range v.PreAggregationFilters {
		if err := f.Validate(); err != nil {
			return err
		}
	}

	for _, f := range v.PostAggregationFilters {
		if err := f.Validate(); err != nil {
			return err
		}
	}

	for group := range v.Properties {
		if _, ok := v.ExcludeProperties[group]; ok {
			return fmt.Errorf("view: group %q both includes and excludes properties", group)
		}
	}

	return nil
}

// IncludesGroup reports whether elements of group are selected by the view.
func (v *View) IncludesGroup(group string) bool {
	if v == nil || len(v.Groups) == 0 {
		return true
	}

	for _, g := range v.Groups {
		if g == group {
			return true
		}
	}

	return false
}

// AcceptPreAggregation reports whether el passes every pre-aggregation
// filter.
func (v *View) AcceptPreAggregation(el graph.Element) (bool, error) {
	if v == nil {
		return true, nil
	}

	return testAll(v.PreAggregationFilters, el.GetProperties())
}

// AcceptPostAggregation reports whether el passes every post-aggregation
// filter.
func (v *View) AcceptPostAggregation(el graph.Element) (bool, error) {
	if v == nil {
		return true, nil
	}

	return testAll(v.PostAggregationFilters, el.GetProperties())
}

// Project returns el restricted to the properties the view selects for its
// group. el is returned unchanged when the view does not project its group;
// otherwise a copy is returned.
func (v *View) Project(el graph.Element) graph.Element {
	if v == nil {
		return el
	}

	group := el.GetGroup()
	include, hasInclude := v.Properties[group]
	exclude, hasExclude := v.ExcludeProperties[group]
	if !hasInclude && !hasExclude {
		return el
	}

	out := el.Clone()
	props := out.GetProperties()
	if hasInclude {
		keep := make(map[string]bool, len(include))
		for _, name := range include {
			keep[name] = true
		}

		for name := range props {
			if !keep[name] {
				delete(props, name)
			}
		}
	}

	for _, name := range exclude {
		delete(props, name)
	}

	return out
}

func testAll(filters []Filter, props graph.Properties) (bool, error) {
	for _, f := range filters {
		ok, err := f.Test(props)
		if err != nil || !ok {
			return false, err
		}
	}

	return true, nil
}

// coerce converts filter values to the class of the property they test. The
// class is taken from the first group, in name order, that declares the
// property.
func (v *View) coerce(sch *schema.Schema) error {
	if v == nil || sch == nil {
		return nil
	}

	for _, filters := range [][]Filter{v.PreAggregationFilters, v.PostAggregationFilters} {
		for i := range filters {
			class, ok := propertyClass(sch, filters[i].Property)
			if !ok || filters[i].Value == nil {
				continue
			}

			if filters[i].Predicate == Contains && class == schema.ClassStringSet {
				continue
			}

			coerced, err := class.Coerce(filters[i].Value)
			if err != nil {
				return fmt.Errorf("filter on %q: %w", filters[i].Property, err)
			}

			filters[i].Value = coerced
		}
	}

	return nil
}

func propertyClass(sch *schema.Schema, prop string) (schema.Class, bool) {
	for _, group := range sch.Groups() {
		if class, ok := sch.PropertyClass(group, prop); ok {
			return class, true
		}
	}

	return "", false
}
