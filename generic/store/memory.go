// Package store provides CollectionStore implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/dashboard-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps each collection as its encoded document, so every read
// hands out a fresh copy and no caller can alias stored data.
type Memory struct {
	mu    sync.RWMutex
	docs  map[generic.EntityType][]byte
	reads int
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[generic.EntityType][]byte)}
}

// ReadCollection returns a copy of the collection; unknown types are empty.
func (m *Memory) ReadCollection(_ context.Context, t generic.EntityType) (generic.Collection, error) {
	m.mu.Lock()
	m.reads++
	doc, ok := m.docs[t]
	m.mu.Unlock()

	if !ok {
		return generic.Collection{}, nil
	}
	coll, err := generic.DecodeCollection(doc)
	if err != nil {
		return nil, &generic.CorruptCollectionError{Type: t, Err: err}
	}
	return coll, nil
}

// WriteCollection replaces the collection under one lock.
func (m *Memory) WriteCollection(_ context.Context, t generic.EntityType, c generic.Collection) error {
	doc, err := generic.EncodeCollection(c)
	if err != nil {
		return &generic.StorageError{Op: "write", Type: t, Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[t] = doc
	return nil
}

// QueryCollection filters in memory; it exists so tests can exercise the
// pushdown path of the resource service.
func (m *Memory) QueryCollection(ctx context.Context, t generic.EntityType, params generic.Params) (generic.Collection, error) {
	coll, err := m.ReadCollection(ctx, t)
	if err != nil {
		return nil, err
	}
	return generic.FilterCollection(coll, params), nil
}

// SetRaw stores an arbitrary document, valid or not. Test helper.
func (m *Memory) SetRaw(t generic.EntityType, doc []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[t] = append([]byte(nil), doc...)
}

// Reads counts ReadCollection calls, for asserting cache behavior.
func (m *Memory) Reads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reads
}

// Reset drops every collection.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = make(map[generic.EntityType][]byte)
}
