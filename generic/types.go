/*
Package generic provides the domain-agnostic entity model shared by every
resource type in the dashboard engine.

PURPOSE:
  Clients, projects, devices, invoices, strategies and timelines are all
  handled by the same code paths. This package defines the shapes those
  paths agree on: an Entity is a JSON object, a Collection is the ordered
  set of Entities of one type, and Params narrow a Collection.

KEY CONCEPTS IN THIS FILE (types.go):
  - EntityType: Names a collection ("clients", "invoices", ...)
  - Entity:     A JSON object that always carries id/createdAt/updatedAt
  - Collection: Ordered entities of one type, persisted as a single unit
  - Params:     Immutable filter criteria with a stable encoding

DESIGN PRINCIPLES:
  1. Schemaless storage: the store never interprets fields beyond id
  2. Exact numbers: JSON numbers decode as json.Number and round-trip unchanged
  3. Copy on hand-off: Clone before handing data across a layer boundary

USAGE:
  coll, err := generic.DecodeCollection(data)
  e, ok := coll.Find("550e8400-e29b-41d4-a716-446655440000")
  name, _ := e.String("name")

SEE ALSO:
  - store.go: CollectionStore and Resources contracts
  - errors.go: Error taxonomy
  - schema.go: Per-type schemas and the registry
*/
package generic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// =============================================================================
// FIELD NAMES - Fields every entity carries
// =============================================================================

const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// AllSentinel is the filter value meaning "no filter".
const AllSentinel = "all"

// =============================================================================
// ENTITY TYPE
// =============================================================================

// EntityType names one collection, e.g. "clients".
type EntityType string

const (
	TypeClients    EntityType = "clients"
	TypeProjects   EntityType = "projects"
	TypeDevices    EntityType = "devices"
	TypeInvoices   EntityType = "invoices"
	TypeStrategies EntityType = "strategies"
	TypeTimelines  EntityType = "timelines"
	TypeEvents     EntityType = "events"
	TypeTasks      EntityType = "tasks"
)

func (t EntityType) String() string { return string(t) }

// Valid reports whether t is usable as a storage key (file name, object key, row key).
func (t EntityType) Valid() bool {
	if t == "" || len(t) > 64 {
		return false
	}
	for _, r := range string(t) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// =============================================================================
// ENTITY
// =============================================================================

// Entity is a single persisted record: a JSON object keyed by field name.
type Entity map[string]any

// ID returns the entity id, or "" when absent.
func (e Entity) ID() string {
	id, _ := e[FieldID].(string)
	return id
}

// String returns a string field. Non-string values report ok=false.
func (e Entity) String(field string) (string, bool) {
	s, ok := e[field].(string)
	return s, ok
}

// Lookup resolves a dotted path ("address.city") through nested objects.
func (e Entity) Lookup(path string) (any, bool) {
	var cur any = map[string]any(e)
	for _, part := range strings.Split(path, ".") {
		obj, ok := asObject(cur)
		if !ok {
			return nil, false
		}
		cur, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Clone returns a deep copy so callers can mutate freely.
func (e Entity) Clone() Entity {
	if e == nil {
		return nil
	}
	out := make(Entity, len(e))
	for k, v := range e {
		out[k] = cloneValue(v)
	}
	return out
}

// Merge returns a copy of e with every field in patch overwriting e's field.
// Merge is shallow: nested objects in patch replace the existing value wholesale.
func (e Entity) Merge(patch Entity) Entity {
	out := e.Clone()
	if out == nil {
		out = Entity{}
	}
	for k, v := range patch {
		out[k] = cloneValue(v)
	}
	return out
}

func asObject(v any) (map[string]any, bool) {
	switch obj := v.(type) {
	case map[string]any:
		return obj, true
	case Entity:
		return obj, true
	default:
		return nil, false
	}
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = cloneValue(inner)
		}
		return out
	case Entity:
		return val.Clone()
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = cloneValue(inner)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return val
	}
}

// =============================================================================
// SCALARS - Canonical text form used by filters and cache keys
// =============================================================================

// Scalar returns the canonical text of a JSON scalar: strings unchanged,
// numbers in their JSON form, booleans as "true"/"false". Objects, arrays
// and null report ok=false.
func Scalar(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case bool:
		return strconv.FormatBool(val), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case int32:
		return strconv.FormatInt(int64(val), 10), true
	case uint:
		return strconv.FormatUint(uint64(val), 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	default:
		return "", false
	}
}

// =============================================================================
// COLLECTION
// =============================================================================

// Collection is the full ordered set of entities of one type.
type Collection []Entity

// Index returns the position of the entity with id, or -1.
func (c Collection) Index(id string) int {
	for i, e := range c {
		if e.ID() == id {
			return i
		}
	}
	return -1
}

// Find returns the entity with id.
func (c Collection) Find(id string) (Entity, bool) {
	if i := c.Index(id); i >= 0 {
		return c[i], true
	}
	return nil, false
}

// Clone deep-copies the collection. A nil collection clones to an empty one.
func (c Collection) Clone() Collection {
	out := make(Collection, len(c))
	for i, e := range c {
		out[i] = e.Clone()
	}
	return out
}

// IDs lists entity ids in order.
func (c Collection) IDs() []string {
	ids := make([]string, len(c))
	for i, e := range c {
		ids[i] = e.ID()
	}
	return ids
}

// Validate checks the collection invariants: every element has a
// non-empty string id and ids are unique.
func (c Collection) Validate() error {
	seen := make(map[string]struct{}, len(c))
	for i, e := range c {
		id := e.ID()
		if id == "" {
			return fmt.Errorf("element %d has no id", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// DecodeCollection parses a persisted document. Empty input is an empty
// collection; anything that is not an array of objects is corrupt.
func DecodeCollection(data []byte) (Collection, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Collection{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after collection")
	}
	coll := make(Collection, len(raw))
	for i, obj := range raw {
		if obj == nil {
			return nil, fmt.Errorf("element %d is null", i)
		}
		coll[i] = Entity(obj)
	}
	if err := coll.Validate(); err != nil {
		return nil, err
	}
	return coll, nil
}

// EncodeCollection renders a collection the way it is persisted: an
// indented JSON array, never null.
func EncodeCollection(c Collection) ([]byte, error) {
	if c == nil {
		c = Collection{}
	}
	return json.MarshalIndent(c, "", "  ")
}

// DecodeEntity parses one JSON object, keeping numbers exact.
func DecodeEntity(data []byte) (Entity, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("expected a JSON object")
	}
	return Entity(obj), nil
}

// =============================================================================
// PARAMS - Immutable query parameters
// =============================================================================

// Params are filter criteria such as clientId or status. Build them with
// NewParams; the zero value is an empty parameter set.
type Params struct {
	values map[string]string
}

// NewParams copies m, dropping empty values.
func NewParams(m map[string]string) Params {
	p := Params{values: make(map[string]string, len(m))}
	for k, v := range m {
		if k == "" || v == "" {
			continue
		}
		p.values[k] = v
	}
	return p
}

// Get returns one parameter.
func (p Params) Get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Len is the number of parameters.
func (p Params) Len() int { return len(p.values) }

// Keys returns parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the parameters.
func (p Params) Map() map[string]string {
	out := make(map[string]string, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// With returns a new Params with key set; p is unchanged.
func (p Params) With(key, value string) Params {
	m := p.Map()
	m[key] = value
	return NewParams(m)
}

// Without returns a new Params without the given keys.
func (p Params) Without(keys ...string) Params {
	m := p.Map()
	for _, k := range keys {
		delete(m, k)
	}
	return NewParams(m)
}

// Encode is the stable, key-sorted form. Structurally equal params always
// encode identically.
func (p Params) Encode() string {
	v := make(url.Values, len(p.values))
	for k, val := range p.values {
		v.Set(k, val)
	}
	return v.Encode()
}

// Filters returns the params that actually narrow a collection: the "all"
// sentinel is dropped.
func (p Params) Filters() map[string]string {
	out := make(map[string]string, len(p.values))
	for k, v := range p.values {
		if v == AllSentinel {
			continue
		}
		out[k] = v
	}
	return out
}

// Matches reports whether e satisfies every filter by field equality.
// A field missing from e never matches.
func (p Params) Matches(e Entity) bool {
	for field, want := range p.Filters() {
		got, ok := Scalar(e[field])
		if !ok || got != want {
			return false
		}
	}
	return true
}

// FilterCollection keeps the entities matching p, preserving order.
func FilterCollection(c Collection, p Params) Collection {
	out := make(Collection, 0, len(c))
	for _, e := range c {
		if p.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}
