/*
store.go - Persistence and resource contracts

PURPOSE:
  Defines the interface between the resource client and durable storage,
  and the CRUD surface every resource client offers. Different backends
  (JSON files, SQLite, Postgres, S3, memory) implement CollectionStore.

KEY INTERFACES:
  CollectionStore: Whole-collection read/replace, one unit per entity type
  QueryableStore:  Optional pushdown of equality filters
  Resources:       Typed CRUD over entity types (local or over HTTP)

WHOLE-COLLECTION CONTRACT:
  - ReadCollection(): Full collection; a type with no data yet is empty, not an error
  - WriteCollection(): Replaces the collection all-or-nothing; readers never
    observe a partially written document
  - No locking beyond a single writer at a time. Concurrent writers in
    different processes can clobber each other; that limitation is accepted.

ERRORS:
  I/O failures surface as *StorageError (errors.Is ErrStorageUnavailable).
  Unparseable data surfaces as *CorruptCollectionError (ErrCorruptCollection).

IMPLEMENTATIONS:
  - generic/store/memory.go: In-memory for testing
  - store/file/file.go:      One JSON document per type (default)
  - store/sqlite/sqlite.go:  One row per type
  - store/postgres:          One jsonb row per type
  - store/s3:                One object per type

SEE ALSO:
  - resource/service.go: Resources implementation over a CollectionStore
  - resource/httpclient.go: Resources implementation over HTTP
*/
package generic

import "context"

// =============================================================================
// COLLECTION STORE
// =============================================================================

// CollectionStore persists one Collection per entity type.
type CollectionStore interface {
	// ReadCollection returns the full collection, empty if none exists yet.
	ReadCollection(ctx context.Context, t EntityType) (Collection, error)

	// WriteCollection atomically replaces the persisted collection.
	WriteCollection(ctx context.Context, t EntityType, c Collection) error
}

// QueryableStore is implemented by stores that can narrow a collection
// by field equality without returning every entity.
type QueryableStore interface {
	CollectionStore

	// QueryCollection returns entities matching every param, in collection order.
	QueryCollection(ctx context.Context, t EntityType, params Params) (Collection, error)
}

// =============================================================================
// RESOURCES - CRUD over entity types
// =============================================================================

// Resources exposes typed CRUD operations per entity type.
type Resources interface {
	// List returns the collection, narrowed by params where supported.
	List(ctx context.Context, t EntityType, params Params) (Collection, error)

	// Get returns one entity or a NotFound error.
	Get(ctx context.Context, t EntityType, id string) (Entity, error)

	// Create assigns id and timestamps, persists and returns the stored entity.
	Create(ctx context.Context, t EntityType, fields Entity) (Entity, error)

	// Update shallow-merges fields into the entity and refreshes updatedAt.
	Update(ctx context.Context, t EntityType, id string, fields Entity) (Entity, error)

	// Remove hard-deletes the entity.
	Remove(ctx context.Context, t EntityType, id string) error
}
