package store

import (
	"fmt"
	"strconv"
)

// Property keys understood by the stores in this module.
const (
	// PropStoreType selects the factory used to build a store.
	PropStoreType = "ugraph.store.type"

	// PropReadOnly disables every write handler when set to "true".
	PropReadOnly = "ugraph.store.readonly"

	// PropKVURI is the backing store URI of a kv store.
	PropKVURI = "ugraph.kv.uri"

	// PropRemoteAddr is the address of a remote store.
	PropRemoteAddr = "ugraph.remote.addr"
)

// Properties configure a store. They travel with a graph registration and
// can be inherited from a parent.
type Properties map[string]string

// Get returns the value of key or def when the key is not set.
func (p Properties) Get(key, def string) string {
	if v, ok := p[key]; ok {
		return v
	}

	return def
}

// Bool parses the value of key. Missing keys are false.
func (p Properties) Bool(key string) (bool, error) {
	v, ok := p[key]
	if !ok || v == "" {
		return false, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("property %s: %w", key, err)
	}

	return b, nil
}

// Clone returns a copy of p.
func (p Properties) Clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}

	return out
}

// MergeProperties returns the union of parent and child. Keys set in child
// override those of parent.
func MergeProperties(parent, child Properties) Properties {
	out := parent.Clone()
	for k, v := range child {
		out[k] = v
	}

	return out
}
