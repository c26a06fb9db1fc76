/*
Package resource implements typed CRUD over entity collections.

PURPOSE:
  The resource client is the only code that mutates collections. It turns
  list/get/create/update/remove into whole-collection reads and writes on
  a generic.CollectionStore, assigning ids and timestamps, applying schema
  defaults and validation, and normalizing address fields.

  Two implementations satisfy generic.Resources:
    Service:    Store-backed, used by the API server
    HTTPClient: REST-backed, used by dashctl and other remote callers

MUTATION DISCIPLINE:
  read whole collection -> change in memory -> write whole collection.
  Mutations of one type are serialized inside the process. Writers in
  other processes can still clobber each other.

CORRUPT DATA:
  A collection that fails to parse is logged at warn level and treated as
  empty, so one bad document never takes the dashboard down.

IDS:
  Schema.IDPrefix == ""  -> random UUID
  Schema.IDPrefix == "X" -> "X-<unixms>-<9 random chars>"
  Ids are re-drawn until unique within the collection.

USAGE:
  svc := resource.NewService(factory.NewRegistry(), st, resource.WithLogger(logger))
  client, err := svc.Create(ctx, generic.TypeClients, generic.Entity{"name": "Sarah", "email": "s@x.io"})

SEE ALSO:
  - generic/store.go: Resources and CollectionStore contracts
  - resource/validate.go: Schema validation
  - query/client.go: Caching wrapper with invalidation
*/
package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/dashboard-engine/generic"
)

// Service implements generic.Resources over a CollectionStore.
type Service struct {
	registry *generic.Registry
	store    generic.CollectionStore
	clock    generic.Clock
	logger   *slog.Logger
	newID    func(prefix string, now time.Time) string

	locksMu sync.Mutex
	locks   map[generic.EntityType]*sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock (tests).
func WithClock(c generic.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger; nil keeps the discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIDGenerator replaces id generation (tests).
func WithIDGenerator(fn func(prefix string, now time.Time) string) Option {
	return func(s *Service) { s.newID = fn }
}

// NewService creates a store-backed resource client.
func NewService(reg *generic.Registry, st generic.CollectionStore, opts ...Option) *Service {
	s := &Service{
		registry: reg,
		store:    st,
		clock:    generic.SystemClock,
		logger:   slog.New(slog.DiscardHandler),
		newID:    NewID,
		locks:    make(map[generic.EntityType]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewID generates an entity id. See package doc for the formats.
func NewID(prefix string, now time.Time) string {
	if prefix == "" {
		return uuid.NewString()
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%s-%d-%s", prefix, now.UnixMilli(), suffix)
}

// maxIDAttempts bounds collision retries so a fixed generator cannot spin.
const maxIDAttempts = 8

func (s *Service) allocateID(t generic.EntityType, prefix string, now time.Time, coll generic.Collection) (string, error) {
	for range maxIDAttempts {
		if id := s.newID(prefix, now); id != "" && coll.Index(id) < 0 {
			return id, nil
		}
	}
	return "", fmt.Errorf("allocate %s id: %d attempts collided", t, maxIDAttempts)
}

// Types lists registered entity types.
func (s *Service) Types() []generic.EntityType {
	return s.registry.Types()
}

// Schema returns the schema for t.
func (s *Service) Schema(t generic.EntityType) (generic.Schema, error) {
	return s.registry.MustLookup(t)
}

// =============================================================================
// READS
// =============================================================================

// List returns the collection. Equality params are applied when the store
// supports pushdown; otherwise the full collection is returned and
// narrowing is left to the pipeline.
func (s *Service) List(ctx context.Context, t generic.EntityType, params generic.Params) (generic.Collection, error) {
	if _, err := s.registry.MustLookup(t); err != nil {
		return nil, err
	}
	if q, ok := s.store.(generic.QueryableStore); ok && len(params.Filters()) > 0 {
		coll, err := q.QueryCollection(ctx, t, params)
		return s.recoverCorrupt(t, coll, err)
	}
	return s.read(ctx, t)
}

// Get returns one entity or a *NotFoundError.
func (s *Service) Get(ctx context.Context, t generic.EntityType, id string) (generic.Entity, error) {
	if _, err := s.registry.MustLookup(t); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, &generic.NotFoundError{Type: t}
	}
	coll, err := s.read(ctx, t)
	if err != nil {
		return nil, err
	}
	e, ok := coll.Find(id)
	if !ok {
		return nil, &generic.NotFoundError{Type: t, ID: id}
	}
	return e, nil
}

func (s *Service) read(ctx context.Context, t generic.EntityType) (generic.Collection, error) {
	coll, err := s.store.ReadCollection(ctx, t)
	return s.recoverCorrupt(t, coll, err)
}

func (s *Service) recoverCorrupt(t generic.EntityType, coll generic.Collection, err error) (generic.Collection, error) {
	if errors.Is(err, generic.ErrCorruptCollection) {
		s.logger.Warn("corrupt collection treated as empty", "type", t, "error", err)
		return generic.Collection{}, nil
	}
	if err != nil {
		return nil, err
	}
	return coll, nil
}

// =============================================================================
// MUTATIONS
// =============================================================================

func (s *Service) lock(t generic.EntityType) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[t]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[t] = mu
	}
	s.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

// Create validates fields, assigns id and timestamps, and persists.
// Caller-supplied id, createdAt and updatedAt are ignored.
func (s *Service) Create(ctx context.Context, t generic.EntityType, fields generic.Entity) (generic.Entity, error) {
	schema, err := s.registry.MustLookup(t)
	if err != nil {
		return nil, err
	}

	e := fields.Clone()
	if e == nil {
		e = generic.Entity{}
	}
	delete(e, generic.FieldID)
	delete(e, generic.FieldCreatedAt)
	delete(e, generic.FieldUpdatedAt)
	for k, v := range generic.Entity(schema.Defaults).Clone() {
		if _, ok := e[k]; !ok {
			e[k] = v
		}
	}
	if err := s.normalize(schema, e); err != nil {
		return nil, err
	}
	if err := validateCreate(schema, e); err != nil {
		return nil, err
	}

	unlock := s.lock(t)
	defer unlock()

	coll, err := s.read(ctx, t)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	id, err := s.allocateID(t, schema.IDPrefix, now, coll)
	if err != nil {
		return nil, err
	}
	ts := generic.FormatTimestamp(now)
	e[generic.FieldID] = id
	e[generic.FieldCreatedAt] = ts
	e[generic.FieldUpdatedAt] = ts

	if err := s.store.WriteCollection(ctx, t, append(coll, e)); err != nil {
		return nil, err
	}
	s.logger.Debug("entity created", "type", t, "id", id)
	return e.Clone(), nil
}

// Update shallow-merges fields into the entity. id and createdAt are
// immutable; updatedAt strictly increases.
func (s *Service) Update(ctx context.Context, t generic.EntityType, id string, fields generic.Entity) (generic.Entity, error) {
	schema, err := s.registry.MustLookup(t)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, &generic.NotFoundError{Type: t}
	}

	patch := fields.Clone()
	if patch == nil {
		patch = generic.Entity{}
	}
	delete(patch, generic.FieldID)
	delete(patch, generic.FieldCreatedAt)
	delete(patch, generic.FieldUpdatedAt)
	if err := s.normalize(schema, patch); err != nil {
		return nil, err
	}
	if err := validatePatch(schema, patch); err != nil {
		return nil, err
	}

	unlock := s.lock(t)
	defer unlock()

	coll, err := s.read(ctx, t)
	if err != nil {
		return nil, err
	}
	idx := coll.Index(id)
	if idx < 0 {
		return nil, &generic.NotFoundError{Type: t, ID: id}
	}

	prev := coll[idx]
	updated := prev.Merge(patch)
	last, ok := prev.String(generic.FieldUpdatedAt)
	if !ok || last == "" {
		last, _ = prev.String(generic.FieldCreatedAt)
	}
	updated[generic.FieldUpdatedAt] = generic.NextTimestamp(last, s.clock())
	coll[idx] = updated

	if err := s.store.WriteCollection(ctx, t, coll); err != nil {
		return nil, err
	}
	s.logger.Debug("entity updated", "type", t, "id", id)
	return updated.Clone(), nil
}

// Remove hard-deletes the entity.
func (s *Service) Remove(ctx context.Context, t generic.EntityType, id string) error {
	if _, err := s.registry.MustLookup(t); err != nil {
		return err
	}
	if id == "" {
		return &generic.NotFoundError{Type: t}
	}

	unlock := s.lock(t)
	defer unlock()

	coll, err := s.read(ctx, t)
	if err != nil {
		return err
	}
	idx := coll.Index(id)
	if idx < 0 {
		return &generic.NotFoundError{Type: t, ID: id}
	}
	next := append(coll[:idx:idx], coll[idx+1:]...)
	if err := s.store.WriteCollection(ctx, t, next); err != nil {
		return err
	}
	s.logger.Debug("entity removed", "type", t, "id", id)
	return nil
}

// Replace overwrites a whole collection after checking its ids. Used by
// scenario loading; it bypasses per-entity validation.
func (s *Service) Replace(ctx context.Context, t generic.EntityType, coll generic.Collection) error {
	if _, err := s.registry.MustLookup(t); err != nil {
		return err
	}
	if err := coll.Validate(); err != nil {
		return &generic.ValidationError{Type: t, Fields: map[string]string{generic.FieldID: err.Error()}}
	}
	unlock := s.lock(t)
	defer unlock()
	return s.store.WriteCollection(ctx, t, coll.Clone())
}

func (s *Service) normalize(schema generic.Schema, e generic.Entity) error {
	for _, field := range schema.AddressFields {
		if err := generic.NormalizeAddressFields(e, []string{field}); err != nil {
			return &generic.ValidationError{Type: schema.Type, Fields: map[string]string{field: err.Error()}}
		}
	}
	return nil
}
