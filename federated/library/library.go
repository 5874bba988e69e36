/*
	library package stores the schemas and properties of federated graphs so
	that new graphs can inherit them by id.
*/

package library

import (
	"errors"

	"github.com/mycok/uGraph/schema"
	"github.com/mycok/uGraph/store"
)

// ErrNotFound is returned when no entry exists for an id.
var ErrNotFound = errors.New("library entry not found")

// Library keeps schemas and properties by id.
type Library interface {
	// AddSchema stores sch under id, replacing any existing schema.
	AddSchema(id string, sch *schema.Schema) error

	// AddProperties stores props under id, replacing any existing
	// properties.
	AddProperties(id string, props store.Properties) error

	// Schema returns the schema stored under id.
	Schema(id string) (*schema.Schema, error)

	// Properties returns the properties stored under id.
	Properties(id string) (store.Properties, error)

	// Remove deletes the schema and properties stored under id.
	Remove(id string) error

	// Close releases the library.
	Close() error
}
