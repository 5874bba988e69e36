package library

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	"github.com/mycok/uGraph/schema"
	"github.com/mycok/uGraph/store"
)

var (
	schemaBucket     = []byte("schemas")
	propertiesBucket = []byte("properties")
)

// Static and compile-time check to ensure BoltLibrary implements Library
// interface.
var _ Library = (*BoltLibrary)(nil)

// BoltLibrary persists schemas as JSON and properties as msgpack documents
// in a bbolt database.
type BoltLibrary struct {
	db *bolt.DB
}

// NewBoltLibrary opens or creates the library database at path.
func NewBoltLibrary(path string) (*BoltLibrary, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("library: open %q: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{schemaBucket, propertiesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}

		return nil
	})
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("library: %w", err)
	}

	return &BoltLibrary{db: db}, nil
}

// AddSchema stores sch under id.
func (l *BoltLibrary) AddSchema(id string, sch *schema.Schema) error {
	if sch == nil {
		return fmt.Errorf("library: nil schema for %q", id)
	}

	data, err := sch.ToJSON()
	if err != nil {
		return fmt.Errorf("library: schema %q: %w", id, err)
	}

	return l.put(schemaBucket, id, data)
}

// AddProperties stores props under id.
func (l *BoltLibrary) AddProperties(id string, props store.Properties) error {
	data, err := msgpack.Marshal(map[string]string(props))
	if err != nil {
		return fmt.Errorf("library: properties %q: %w", id, err)
	}

	return l.put(propertiesBucket, id, data)
}

// Schema returns the schema stored under id.
func (l *BoltLibrary) Schema(id string) (*schema.Schema, error) {
	data, err := l.get(schemaBucket, id)
	if err != nil {
		return nil, fmt.Errorf("schema %q: %w", id, err)
	}

	return schema.FromJSON(data)
}

// Properties returns the properties stored under id.
func (l *BoltLibrary) Properties(id string) (store.Properties, error) {
	data, err := l.get(propertiesBucket, id)
	if err != nil {
		return nil, fmt.Errorf("properties %q: %w", id, err)
	}

	props := make(map[string]string)
	if err := msgpack.Unmarshal(data, &props); err != nil {
		return nil, fmt.Errorf("properties %q: %w", id, err)
	}

	return store.Properties(props), nil
}

// Remove deletes every entry stored under id.
func (l *BoltLibrary) Remove(id string) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{schemaBucket, propertiesBucket} {
			if err := tx.Bucket(name).Delete([]byte(id)); err != nil {
				return err
			}
		}

		return nil
	})
}

// Close releases the database file.
func (l *BoltLibrary) Close() error {
	return l.db.Close()
}

func (l *BoltLibrary) put(bucket []byte, id string, data []byte) error {
	err := l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(id), data)
	})
	if err != nil {
		return fmt.Errorf("library: %w", err)
	}

	return nil
}

func (l *BoltLibrary) get(bucket []byte, id string) ([]byte, error) {
	var data []byte
	err := l.db.View(func(tx *bolt.Tx) error {
		// Values are only valid for the lifetime of the transaction.
		if v := tx.Bucket(bucket).Get([]byte(id)); v != nil {
			data = append([]byte(nil), v...)
		}

		return nil
	})
	if err != nil {
		return nil, err
	} else if data == nil {
		return nil, ErrNotFound
	}

	return data, nil
}
