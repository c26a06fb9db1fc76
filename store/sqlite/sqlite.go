/*
Package sqlite provides a SQLite-backed CollectionStore.

PURPOSE:
  Persists each entity type's collection as one JSON document in a single
  table. Same whole-collection semantics as the file store, with the
  durability of a database file and equality filters evaluated in SQL.

INTERFACES IMPLEMENTED:
  generic.CollectionStore: Whole-collection read/replace
  generic.QueryableStore:  Equality filters pushed into json_each()

KEY TABLES:
  collections: entity_type (PK), doc (JSON array text), updated_at

FILTER PUSHDOWN:
  QueryCollection expands the stored array with json_each() and narrows by
  json_extract() per field, ordered by array index so collection order is
  kept. SQL compares canonical text for strings, integers and booleans;
  real numbers pass through and the result is re-checked with
  generic.FilterCollection so both paths agree exactly. Field names outside
  [A-Za-z0-9_] are never interpolated; they are filtered in Go instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Readers don't block the writer
  - Single writer at a time
  - Better crash recovery

USAGE:
  st, err := sqlite.New("./data/dashboard.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - generic/store.go: Interface definitions
  - store/file/file.go: Default JSON-file implementation
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/dashboard-engine/generic"
)

var safeField = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Store implements generic.QueryableStore using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: ":memory:" databases are per-connection, and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS collections (
		entity_type TEXT PRIMARY KEY,
		doc TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`)
	return err
}

// =============================================================================
// COLLECTION STORE
// =============================================================================

// ReadCollection loads the stored document; a type with no row is empty.
func (s *Store) ReadCollection(ctx context.Context, t generic.EntityType) (generic.Collection, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM collections WHERE entity_type = ?`, string(t)).Scan(&doc)
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

// WriteCollection upserts the document in one statement.
func (s *Store) WriteCollection(ctx context.Context, t generic.EntityType, c generic.Collection) error {
	data, err := generic.EncodeCollection(c)
	if err != nil {
		return &generic.StorageError{Op: "encode", Type: t, Err: err}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO collections (entity_type, doc, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(entity_type) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		string(t), string(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return &generic.StorageError{Op: "write", Type: t, Err: err}
	}
	return nil
}

// =============================================================================
// QUERYABLE STORE
// =============================================================================

// QueryCollection returns the entities matching params, in collection order.
// If SQLite cannot expand the document, the whole collection is read so the
// failure is classified the same way ReadCollection classifies it.
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
	defer rows.Close()

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
	b.WriteString(`SELECT e.value FROM collections c, json_each(c.doc) e WHERE c.entity_type = ?`)
	args := []any{string(t)}

	filters := params.Filters()
	for _, field := range params.Keys() {
		want, ok := filters[field]
		if !ok || !safeField.MatchString(field) {
			continue
		}
		path := "$." + field
		fmt.Fprintf(&b, ` AND (json_type(e.value, '%[1]s') = 'real' OR (CASE json_type(e.value, '%[1]s')
			WHEN 'true' THEN 'true'
			WHEN 'false' THEN 'false'
			WHEN 'integer' THEN CAST(json_extract(e.value, '%[1]s') AS TEXT)
			WHEN 'text' THEN json_extract(e.value, '%[1]s')
			END) = ?)`, path)
		args = append(args, want)
	}
	b.WriteString(` ORDER BY CAST(e.key AS INTEGER)`)
	return b.String(), args
}
