package graph

import "sort"

// StringSet is an unordered set of strings. It is the value type of
// set<string> properties.
type StringSet map[string]struct{}

// NewStringSet returns a set holding the provided values.
func NewStringSet(values ...string) StringSet {
	s := make(StringSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}

	return s
}

// Add inserts v into the set.
func (s StringSet) Add(v string) { s[v] = struct{}{} }

// Contains reports whether v belongs to the set.
func (s StringSet) Contains(v string) bool {
	_, ok := s[v]

	return ok
}

// Sorted returns the set members in ascending order.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}

	sort.Strings(out)

	return out
}

// Clone returns a copy of the set.
func (s StringSet) Clone() StringSet {
	out := make(StringSet, len(s))
	for v := range s {
		out[v] = struct{}{}
	}

	return out
}
