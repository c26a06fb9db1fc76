/*
schema.go - Entity type schemas and their registry

PURPOSE:
  Every entity type is stored schemaless, but the resource client still
  needs to know per type which fields are required, which are constrained
  to a fixed set of values, how ids look, and which fields a list view
  searches. A Schema carries that; a Registry holds the schemas for one
  application session.

HOW IT WORKS:
  1. factory.DefaultSchemas() builds the built-in schemas
  2. factory.LoadSchemas() adds or overrides schemas from YAML/JSON
  3. The registry is injected into resource.Service and the API

WHY AN INSTANCE, NOT A GLOBAL:
  Tests build registries with exactly the types they need, and two
  servers in one process never share mutable state.

SEE ALSO:
  - factory/schema.go: Schema definitions
  - resource/validate.go: Applies Required/Enums/Emails
  - pipeline/schema.go: FromSchema uses SearchFields/DisplayField
*/
package generic

import (
	"sort"
	"sync"
)

// =============================================================================
// SCHEMA
// =============================================================================

// Schema describes one entity type.
type Schema struct {
	Type EntityType

	// IDPrefix selects "<prefix>-<unixms>-<random>" ids; empty means a UUID.
	IDPrefix string

	// Required fields must be present and non-empty on create, and may not
	// be cleared by an update.
	Required []string

	// Enums restrict a field to a fixed set of values when present.
	Enums map[string][]string

	// Emails are fields that must hold a well-formed address when present.
	Emails []string

	// Defaults fill absent fields on create.
	Defaults map[string]any

	// SearchFields are matched by the list view's search term.
	SearchFields []string

	// DisplayField is the field name-asc/name-desc sort on. Defaults to "name".
	DisplayField string

	// AddressFields hold postal addresses (structured or freeform).
	AddressFields []string
}

// Display returns the display field, defaulting to "name".
func (s Schema) Display() string {
	if s.DisplayField == "" {
		return "name"
	}
	return s.DisplayField
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry maps entity types to schemas. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	schemas map[EntityType]Schema
}

// NewRegistry creates a registry holding the given schemas.
func NewRegistry(schemas ...Schema) *Registry {
	r := &Registry{schemas: make(map[EntityType]Schema, len(schemas))}
	for _, s := range schemas {
		r.Register(s)
	}
	return r
}

// Register adds or replaces a schema.
func (r *Registry) Register(s Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[s.Type] = s
}

// Lookup finds a schema by type.
func (r *Registry) Lookup(t EntityType) (Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[t]
	return s, ok
}

// MustLookup returns the schema or an UnknownTypeError.
func (r *Registry) MustLookup(t EntityType) (Schema, error) {
	s, ok := r.Lookup(t)
	if !ok {
		return Schema{}, &UnknownTypeError{Type: t}
	}
	return s, nil
}

// Types returns registered types in sorted order.
func (r *Registry) Types() []EntityType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]EntityType, 0, len(r.schemas))
	for t := range r.schemas {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
