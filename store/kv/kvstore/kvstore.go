/*
	kvstore package defines the ordered key-value contract the kv graph store
	is built on. Backends register an Opener for a URI scheme from their init
	function; callers select one with Open.
*/

package kvstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"

	"github.com/mycok/uGraph/codec"
)

var (
	// ErrUnknownScheme is returned by Open for URIs no backend handles.
	ErrUnknownScheme = errors.New("unknown kv store scheme")

	// ErrMergeFailed is returned when two values of the same key cannot be
	// merged.
	ErrMergeFailed = errors.New("merging values failed")
)

// MergeFunc combines the value already stored under key with an incoming
// value. It must be associative and commutative.
type MergeFunc func(key, existing, incoming []byte) ([]byte, error)

// Store is an ordered key-value store that merges the values written to an
// existing key.
type Store interface {
	// Write stores records. A record whose key already exists is merged with
	// the stored value.
	Write(ctx context.Context, records []codec.Record) error

	// Scan returns a cursor over the records with start <= key < end in
	// ascending key order. A nil end scans to the end of the store.
	Scan(ctx context.Context, start, end []byte) (Cursor, error)

	// Close releases the store.
	Close() error
}

// Cursor iterates the records returned by a scan.
type Cursor interface {
	// Next loads the next record, returns false when no more records
	// are available or when an error occurs.
	Next() bool

	// Record returns the current record. The record remains valid after
	// the cursor advances.
	Record() codec.Record

	// Error returns the last error encountered by the cursor.
	Error() error

	// Close releases the cursor. Close may be called more than once.
	Close() error
}

// Opener creates a store from a parsed URI.
type Opener func(uri *url.URL, merge MergeFunc) (Store, error)

var (
	mu      sync.RWMutex
	openers = make(map[string]Opener)
)

// Register makes a backend available for scheme. It panics if an opener is
// already registered for scheme.
func Register(scheme string, opener Opener) {
	mu.Lock()
	defer mu.Unlock()

	if _, dup := openers[scheme]; dup {
		panic(fmt.Sprintf("kvstore: opener already registered for scheme %q", scheme))
	}

	openers[scheme] = opener
}

// Schemes returns the registered schemes in ascending order.
func Schemes() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(openers))
	for scheme := range openers {
		out = append(out, scheme)
	}

	sort.Strings(out)

	return out
}

// Open parses uri and opens the store registered for its scheme.
func Open(uri string, merge MergeFunc) (Store, error) {
	if merge == nil {
		return nil, fmt.Errorf("kvstore: merge function not provided")
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("kvstore: %w", err)
	}

	mu.RLock()
	opener, ok := openers[u.Scheme]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("kvstore: %w %q", ErrUnknownScheme, u.Scheme)
	}

	return opener(u, merge)
}

// Collect drains c into a slice and closes it.
func Collect(c Cursor) ([]codec.Record, error) {
	defer func() { _ = c.Close() }()

	var out []codec.Record
	for c.Next() {
		out = append(out, c.Record())
	}

	return out, c.Error()
}
