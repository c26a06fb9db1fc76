package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/dashboard-engine/generic"
	"github.com/warp/dashboard-engine/generic/store"
)

func TestMemory_MissingCollectionIsEmpty(t *testing.T) {
	m := store.NewMemory()

	coll, err := m.ReadCollection(context.Background(), generic.TypeClients)
	require.NoError(t, err)
	assert.NotNil(t, coll)
	assert.Empty(t, coll)
}

func TestMemory_ReadsAreIdempotentAndIsolated(t *testing.T) {
	// GIVEN: A stored collection
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.WriteCollection(ctx, generic.TypeClients, generic.Collection{{"id": "c1", "name": "Sarah"}}))

	// WHEN: Reading twice and mutating the first result
	first, err := m.ReadCollection(ctx, generic.TypeClients)
	require.NoError(t, err)
	first[0]["name"] = "changed"
	second, err := m.ReadCollection(ctx, generic.TypeClients)
	require.NoError(t, err)

	// THEN: The store is unaffected
	assert.Equal(t, "Sarah", second[0]["name"])
	assert.Equal(t, 2, m.Reads())
}

func TestMemory_CorruptDocument(t *testing.T) {
	m := store.NewMemory()
	m.SetRaw(generic.TypeClients, []byte(`{not json`))

	_, err := m.ReadCollection(context.Background(), generic.TypeClients)
	assert.ErrorIs(t, err, generic.ErrCorruptCollection)
}

func TestMemory_QueryCollection(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.WriteCollection(ctx, generic.TypeInvoices, generic.Collection{
		{"id": "i1", "clientId": "a"},
		{"id": "i2", "clientId": "b"},
		{"id": "i3", "clientId": "a"},
	}))

	got, err := m.QueryCollection(ctx, generic.TypeInvoices, generic.NewParams(map[string]string{"clientId": "a"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"i1", "i3"}, got.IDs())
}
