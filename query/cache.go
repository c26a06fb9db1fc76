/*
Package query caches resource reads and keeps them consistent with mutations.

PURPOSE:
  Avoids redundant collection reads. Entries are keyed by
  (entity type, normalized params) for lists and (entity type, id) for
  single entities. Mutations invalidate every entry of their type.

KEY CONCEPTS:
  Key:        Type + Params.Encode() (+ ID). Structurally equal params share a key.
  Staleness:  An entry is served while it is younger than the staleness
              window and has not been invalidated. Default window: 5 minutes.
  Coalescing: Concurrent misses on one key share a single fetch (singleflight).
  Tokens:     Every fetch draws a monotonically increasing token for its key.
              A result is applied only if its token is still the latest
              issued; a slower, older fetch never overwrites a newer one.
  Epochs:     Invalidate bumps the type's epoch. A fetch that started before
              the bump still returns its data to its callers, but is stored
              as stale, and later reads do not join it.

ERRORS:
  A failed fetch leaves the existing entry untouched (stale-but-present).
  The error goes to the caller; Peek still returns the last good value.

LIFECYCLE:
  One Cache per session. Clear drops everything (logout/teardown). There is
  no global instance.

USAGE:
  cache := query.NewCache(resources, query.WithStaleAfter(time.Minute))
  coll, err := cache.Get(ctx, generic.TypeClients, params)
  cache.Invalidate(generic.TypeClients)

SEE ALSO:
  - query/client.go: Resources wrapper that invalidates after mutations
  - query/metrics.go: Prometheus counters
*/
package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/warp/dashboard-engine/generic"
)

// DefaultStaleAfter is the staleness window used when none is configured.
const DefaultStaleAfter = 5 * time.Minute

// KeyKind separates collection entries from single-entity entries.
type KeyKind uint8

const (
	KindList KeyKind = iota
	KindEntity
)

// Key identifies one cached result.
type Key struct {
	Kind   KeyKind
	Type   generic.EntityType
	Params string // generic.Params.Encode(), list keys only
	ID     string // entity keys only
}

// ListKey builds the key for a collection read.
func ListKey(t generic.EntityType, params generic.Params) Key {
	return Key{Kind: KindList, Type: t, Params: params.Encode()}
}

// EntityKey builds the key for a single-entity read.
func EntityKey(t generic.EntityType, id string) Key {
	return Key{Kind: KindEntity, Type: t, ID: id}
}

func (k Key) String() string {
	if k.Kind == KindEntity {
		return string(k.Type) + "/" + k.ID
	}
	return string(k.Type) + "?" + k.Params
}

// Entry is a snapshot of a cached value.
type Entry struct {
	Collection generic.Collection
	Entity     generic.Entity
	FetchedAt  time.Time
	Stale      bool
}

type entry struct {
	coll      generic.Collection
	ent       generic.Entity
	fetchedAt time.Time
	stale     bool
}

// Cache is safe for concurrent use.
type Cache struct {
	src        generic.Resources
	staleAfter time.Duration
	clock      generic.Clock
	metrics    *Metrics

	group singleflight.Group

	mu         sync.Mutex
	entries    map[Key]*entry
	tokens     map[Key]uint64
	epochs     map[generic.EntityType]uint64
	generation uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithStaleAfter sets the staleness window; non-positive keeps the default.
func WithStaleAfter(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.staleAfter = d
		}
	}
}

// WithClock replaces the wall clock (tests).
func WithClock(clock generic.Clock) Option {
	return func(c *Cache) { c.clock = clock }
}

// WithMetrics records cache activity.
func WithMetrics(m *Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// NewCache creates a cache reading through src.
func NewCache(src generic.Resources, opts ...Option) *Cache {
	c := &Cache{
		src:        src,
		staleAfter: DefaultStaleAfter,
		clock:      generic.SystemClock,
		entries:    make(map[Key]*entry),
		tokens:     make(map[Key]uint64),
		epochs:     make(map[generic.EntityType]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// =============================================================================
// READS
// =============================================================================

// Get returns the collection for (t, params), fetching on a miss or when
// the entry is stale.
func (c *Cache) Get(ctx context.Context, t generic.EntityType, params generic.Params) (generic.Collection, error) {
	key := ListKey(t, params)
	v, err := c.load(ctx, key, func(ctx context.Context) (*entry, error) {
		coll, err := c.src.List(ctx, t, params)
		if err != nil {
			return nil, err
		}
		return &entry{coll: coll}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.coll.Clone(), nil
}

// GetOne returns a single entity, cached under its own key. An empty id is
// never fetched.
func (c *Cache) GetOne(ctx context.Context, t generic.EntityType, id string) (generic.Entity, error) {
	if id == "" {
		return nil, &generic.NotFoundError{Type: t}
	}
	key := EntityKey(t, id)
	v, err := c.load(ctx, key, func(ctx context.Context) (*entry, error) {
		e, err := c.src.Get(ctx, t, id)
		if err != nil {
			return nil, err
		}
		return &entry{ent: e}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.ent.Clone(), nil
}

// Peek returns the cached entry without fetching.
func (c *Cache) Peek(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return Entry{
		Collection: e.coll.Clone(),
		Entity:     e.ent.Clone(),
		FetchedAt:  e.fetchedAt,
		Stale:      e.stale || !c.fresh(e),
	}, true
}

func (c *Cache) fresh(e *entry) bool {
	return !e.stale && c.clock().Sub(e.fetchedAt) < c.staleAfter
}

func (c *Cache) load(ctx context.Context, key Key, fetch func(context.Context) (*entry, error)) (*entry, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.fresh(e) {
		c.mu.Unlock()
		c.metrics.hit(key.Type)
		return e, nil
	}
	flight := fmt.Sprintf("%s#%d.%d", key, c.generation, c.epochs[key.Type])
	c.mu.Unlock()
	c.metrics.miss(key.Type)

	// The shared fetch must outlive any one caller's context.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flight, func() (any, error) {
		c.mu.Lock()
		c.tokens[key]++
		token := c.tokens[key]
		epoch := c.epochs[key.Type]
		gen := c.generation
		c.mu.Unlock()

		e, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.store(key, token, epoch, gen, e)
		return e, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.metrics.coalesced(key.Type)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*entry), nil
	}
}

// store applies a fetch result if it is still the newest for its key.
func (c *Cache) store(key Key, token, epoch, gen uint64, e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || token < c.tokens[key] {
		c.metrics.dropped(key.Type)
		return
	}
	stored := &entry{coll: e.coll, ent: e.ent, fetchedAt: c.clock()}
	if epoch != c.epochs[key.Type] {
		stored.stale = true
	}
	c.entries[key] = stored
}

// =============================================================================
// INVALIDATION
// =============================================================================

// Invalidate marks every entry of type t stale, across all params and ids.
func (c *Cache) Invalidate(t generic.EntityType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epochs[t]++
	for k, e := range c.entries {
		if k.Type == t {
			e.stale = true
		}
	}
	c.metrics.invalidated(t)
}

// Clear drops every entry. Fetches in flight are not applied.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.entries = make(map[Key]*entry)
}

// Len reports the number of entries, fresh or stale.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
