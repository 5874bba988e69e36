/*
	trait package enumerates the capabilities a store can advertise. Optional
	operations declare the traits they need and are rejected by stores that do
	not advertise them.
*/

package trait

import (
	"sort"
	"strings"
)

// Trait is a single store capability.
type Trait string

// Known traits.
const (
	// Ordered stores return elements in key order.
	Ordered Trait = "ORDERED"

	// StoreAggregation stores merge elements that share an identity on write.
	StoreAggregation Trait = "STORE_AGGREGATION"

	// PreAggregationFiltering stores can filter raw records before query-time
	// aggregation.
	PreAggregationFiltering Trait = "PRE_AGGREGATION_FILTERING"

	// PostAggregationFiltering stores can filter after query-time aggregation.
	PostAggregationFiltering Trait = "POST_AGGREGATION_FILTERING"

	// PostTransformationFiltering stores can filter transformed elements.
	PostTransformationFiltering Trait = "POST_TRANSFORMATION_FILTERING"

	// QueryAggregation stores can summarise elements across group-by values
	// at query time.
	QueryAggregation Trait = "QUERY_AGGREGATION"
)

// Set is an immutable set of traits.
type Set struct {
	traits map[Trait]struct{}
}

// NewSet returns a set holding the provided traits.
func NewSet(traits ...Trait) Set {
	s := Set{traits: make(map[Trait]struct{}, len(traits))}
	for _, t := range traits {
		s.traits[t] = struct{}{}
	}

	return s
}

// Has reports whether t belongs to the set.
func (s Set) Has(t Trait) bool {
	_, ok := s.traits[t]

	return ok
}

// Len returns the number of traits in the set.
func (s Set) Len() int { return len(s.traits) }

// Union returns a set holding the traits of s and other.
func (s Set) Union(other Set) Set {
	out := NewSet(s.List()...)
	for t := range other.traits {
		out.traits[t] = struct{}{}
	}

	return out
}

// Intersect returns the traits present in both s and other.
func (s Set) Intersect(other Set) Set {
	out := NewSet()
	for t := range s.traits {
		if other.Has(t) {
			out.traits[t] = struct{}{}
		}
	}

	return out
}

// Missing returns the traits of required that s lacks, in ascending order.
func (s Set) Missing(required Set) []Trait {
	var missing []Trait
	for _, t := range required.List() {
		if !s.Has(t) {
			missing = append(missing, t)
		}
	}

	return missing
}

// List returns the traits in ascending order.
func (s Set) List() []Trait {
	out := make([]Trait, 0, len(s.traits))
	for t := range s.traits {
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

func (s Set) String() string {
	names := make([]string, 0, len(s.traits))
	for _, t := range s.List() {
		names = append(names, string(t))
	}

	return "[" + strings.Join(names, " ") + "]"
}
