/*
	cdb package implements the kvstore contract on top of a CockroachDB or
	PostgreSQL table. Every graph owns the rows carrying its name, so several
	graphs can share one database. Scans rely on BYTEA columns comparing
	byte-wise.

	URI: postgresql://user@host:26257/db?sslmode=disable&graph=<name>
	The graph query parameter defaults to "default".
*/

package cdb

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/lib/pq"

	"github.com/mycok/uGraph/codec"
	"github.com/mycok/uGraph/store/kv/kvstore"
)

// Supported URI schemes.
const (
	SchemePostgres   = "postgres"
	SchemePostgreSQL = "postgresql"
)

const graphParam = "graph"

var (
	createTableQuery = `
					CREATE TABLE IF NOT EXISTS records (
						graph_id TEXT NOT NULL,
						key BYTEA NOT NULL,
						value BYTEA NOT NULL,
						PRIMARY KEY (graph_id, key)
					)
					`

	lockRecordQuery = `
					SELECT value FROM records
					WHERE graph_id = $1 AND key = $2
					FOR UPDATE
					`

	upsertRecordQuery = `
					INSERT INTO records (graph_id, key, value)
					VALUES ($1, $2, $3)
					ON CONFLICT (graph_id, key)
					DO UPDATE SET value = excluded.value
					`

	scanQuery = `
					SELECT key, value FROM records
					WHERE graph_id = $1 AND key >= $2
					ORDER BY key
					`

	boundedScanQuery = `
					SELECT key, value FROM records
					WHERE graph_id = $1 AND key >= $2 AND key < $3
					ORDER BY key
					`
)

func init() {
	opener := func(u *url.URL, merge kvstore.MergeFunc) (kvstore.Store, error) {
		q := u.Query()

		graphID := q.Get(graphParam)
		if graphID == "" {
			graphID = "default"
		}

		q.Del(graphParam)
		dsn := *u
		dsn.RawQuery = q.Encode()

		return New(dsn.String(), graphID, merge)
	}

	kvstore.Register(SchemePostgres, opener)
	kvstore.Register(SchemePostgreSQL, opener)
}

// Static and compile-time check to ensure Store implements kvstore.Store.
var _ kvstore.Store = (*Store)(nil)

// Store keeps the records of one graph in a CockroachDB table.
type Store struct {
	db      *sql.DB
	graphID string
	merge   kvstore.MergeFunc
}

// New connects to the database at dsn and creates the records table if
// needed.
func New(dsn, graphID string, merge kvstore.MergeFunc) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("cdb: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("cdb: %w", err)
	}

	if _, err := db.ExecContext(ctx, createTableQuery); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("cdb: create table: %w", err)
	}

	return &Store{db: db, graphID: graphID, merge: merge}, nil
}

// Write merges records into the table inside a single transaction. Stored
// values are locked before they are merged.
func (s *Store) Write(ctx context.Context, records []codec.Record) (err error) {
	if len(records) == 0 {
		return nil
	}

	// Records sharing a key are merged before touching the database.
	pending := make(map[string][]byte, len(records))
	order := make([]string, 0, len(records))
	for _, rec := range records {
		k := string(rec.Key)

		existing, ok := pending[k]
		if !ok {
			pending[k] = rec.Value
			order = append(order, k)

			continue
		}

		if pending[k], err = s.merge(rec.Key, existing, rec.Value); err != nil {
			return fmt.Errorf("cdb: write: %w: %v", kvstore.ErrMergeFailed, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cdb: write: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()

			return
		}

		if err = tx.Commit(); err != nil {
			err = fmt.Errorf("cdb: write: commit: %w", err)
		}
	}()

	for _, k := range order {
		key, value := []byte(k), pending[k]

		var stored []byte
		switch scanErr := tx.QueryRowContext(ctx, lockRecordQuery, s.graphID, key).Scan(&stored); scanErr {
		case nil:
			if value, err = s.merge(key, stored, value); err != nil {
				return fmt.Errorf("cdb: write: %w: %v", kvstore.ErrMergeFailed, err)
			}
		case sql.ErrNoRows:
		default:
			return fmt.Errorf("cdb: write: %w", scanErr)
		}

		if _, err = tx.ExecContext(ctx, upsertRecordQuery, s.graphID, key, value); err != nil {
			if isSerializationFailure(err) {
				return fmt.Errorf("cdb: write: conflicting transaction: %w", err)
			}

			return fmt.Errorf("cdb: write: %w", err)
		}
	}

	return nil
}

// Scan returns a cursor over [start, end) of the graph's records.
func (s *Store) Scan(ctx context.Context, start, end []byte) (kvstore.Cursor, error) {
	if start == nil {
		start = []byte{}
	}

	var (
		rows *sql.Rows
		err  error
	)

	if end == nil {
		rows, err = s.db.QueryContext(ctx, scanQuery, s.graphID, start)
	} else {
		rows, err = s.db.QueryContext(ctx, boundedScanQuery, s.graphID, start, end)
	}

	if err != nil {
		return nil, fmt.Errorf("cdb: scan: %w", err)
	}

	return &cursor{rows: rows}, nil
}

// Drop deletes every record of the graph.
func (s *Store) Drop(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE graph_id = $1", s.graphID); err != nil {
		return fmt.Errorf("cdb: drop: %w", err)
	}

	return nil
}

// Close terminates the connection to the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// isSerializationFailure reports whether err aborted a transaction that
// conflicted with a concurrent one.
func isSerializationFailure(err error) bool {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return false
	}

	return pqErr.Code.Name() == "serialization_failure"
}

type cursor struct {
	rows    *sql.Rows
	rec     codec.Record
	lastErr error
	closed  bool
}

func (c *cursor) Next() bool {
	if c.closed || c.lastErr != nil || !c.rows.Next() {
		if c.lastErr == nil && !c.closed {
			c.lastErr = c.rows.Err()
		}

		return false
	}

	var rec codec.Record
	if c.lastErr = c.rows.Scan(&rec.Key, &rec.Value); c.lastErr != nil {
		return false
	}

	c.rec = rec

	return true
}

func (c *cursor) Record() codec.Record { return c.rec }

func (c *cursor) Error() error { return c.lastErr }

func (c *cursor) Close() error {
	if c.closed {
		return nil
	}

	c.closed = true

	if err := c.rows.Close(); err != nil {
		return fmt.Errorf("cdb cursor: %w", err)
	}

	return nil
}
