/*
Package postgres provides a Postgres-backed CollectionStore.

PURPOSE:
  Same layout as the SQLite store, one jsonb document per entity type,
  for deployments that already run Postgres. Connects through the pgx
  database/sql driver.

FILTER PUSHDOWN:
  QueryCollection expands the document with jsonb_array_elements WITH
  ORDINALITY and compares elem->>field with the parameter. Field names are
  bound as parameters, never interpolated. Numbers pass through the SQL
  filter (jsonb renders numerics in its own canonical form) and every
  result is re-checked with generic.FilterCollection.

USAGE:
  st, err := postgres.New(ctx, "postgres://localhost/dashboard?sslmode=disable")
  defer st.Close()

SEE ALSO:
  - store/sqlite/sqlite.go: Same design on SQLite
*/
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"github.com/warp/dashboard-engine/generic"
)

const (
	driverName = "pgx"
	DefaultDSN = "postgres://localhost/dashboard?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store implements generic.QueryableStore on Postgres.
type Store struct {
	db *sql.DB
}

// New connects, pings and ensures the collections table exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(driverName, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS collections (
		entity_type TEXT PRIMARY KEY,
		doc JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure collections table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the pool.
func (s *Store) Close() error { return s.db.Close() }

// ReadCollection loads the document; a type with no row is empty.
func (s *Store) ReadCollection(ctx context.Context, t generic.EntityType) (generic.Collection, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc::text FROM collections WHERE entity_type = $1`, string(t)).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return generic.Collection{}, nil
	}
	if err != nil {
		return nil, &generic.StorageError{Op: "read", Type: t, Err: err}
	}
	coll, err := generic.DecodeCollection([]byte(doc))
	if err != nil {
		return nil, &generic.CorruptCollectionError{Type: t, Err: err}
	}
	return coll, nil
}

// WriteCollection upserts the document.
func (s *Store) WriteCollection(ctx context.Context, t generic.EntityType, c generic.Collection) error {
	data, err := generic.EncodeCollection(c)
	if err != nil {
		return &generic.StorageError{Op: "encode", Type: t, Err: err}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO collections (entity_type, doc, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (entity_type) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`,
		string(t), string(data))
	if err != nil {
		return &generic.StorageError{Op: "write", Type: t, Err: err}
	}
	return nil
}

// QueryCollection narrows in SQL and re-checks in Go. When the pushdown
// query fails the whole collection is read and filtered instead.
func (s *Store) QueryCollection(ctx context.Context, t generic.EntityType, params generic.Params) (generic.Collection, error) {
	coll, err := s.queryPushdown(ctx, t, params)
	if err != nil {
		full, readErr := s.ReadCollection(ctx, t)
		if readErr != nil {
			return nil, readErr
		}
		coll = full
	}
	return generic.FilterCollection(coll, params), nil
}

func (s *Store) queryPushdown(ctx context.Context, t generic.EntityType, params generic.Params) (generic.Collection, error) {
	query, args := buildQuery(t, params)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	coll := generic.Collection{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		e, err := generic.DecodeEntity([]byte(raw))
		if err != nil {
			return nil, err
		}
		coll = append(coll, e)
	}
	return coll, rows.Err()
}

func buildQuery(t generic.EntityType, params generic.Params) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT e.elem::text FROM collections c
		CROSS JOIN LATERAL jsonb_array_elements(c.doc) WITH ORDINALITY AS e(elem, ord)
		WHERE c.entity_type = $1`)
	args := []any{string(t)}

	filters := params.Filters()
	for _, field := range params.Keys() {
		want, ok := filters[field]
		if !ok {
			continue
		}
		args = append(args, field, want)
		k, v := len(args)-1, len(args)
		fmt.Fprintf(&b, ` AND (jsonb_typeof(e.elem->$%d::text) = 'number' OR e.elem->>$%d::text = $%d)`, k, k, v)
	}
	b.WriteString(` ORDER BY e.ord`)
	return b.String(), args
}
