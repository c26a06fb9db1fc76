package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/dashboard-engine/generic"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(t.TempDir())
	require.NoError(t, err)
	st.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return st
}

func TestStore_MissingFileIsEmpty(t *testing.T) {
	st := newTestStore(t)

	coll, err := st.ReadCollection(context.Background(), generic.TypeProjects)
	require.NoError(t, err)
	assert.Empty(t, coll)
}

func TestStore_WriteThenRead(t *testing.T) {
	// GIVEN: A written collection
	ctx := context.Background()
	st := newTestStore(t)
	coll := generic.Collection{{"id": "c1", "name": "Sarah Johnson"}}
	require.NoError(t, st.WriteCollection(ctx, generic.TypeClients, coll))

	// WHEN: Reading it back
	got, err := st.ReadCollection(ctx, generic.TypeClients)
	require.NoError(t, err)

	// THEN: Same entities, on-disk form is an indented array
	assert.Equal(t, []string{"c1"}, got.IDs())
	data, err := os.ReadFile(filepath.Join(st.Dir(), "clients.json"))
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\n    \"id\": \"c1\",\n    \"name\": \"Sarah Johnson\"\n  }\n]", string(data))
}

func TestStore_WriteLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.WriteCollection(ctx, generic.TypeClients, generic.Collection{{"id": "a"}}))
	require.NoError(t, st.WriteCollection(ctx, generic.TypeClients, generic.Collection{{"id": "b"}}))

	entries, err := os.ReadDir(st.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "clients.json", entries[0].Name())
}

func TestStore_CorruptFileIsQuarantinedOnNextWrite(t *testing.T) {
	// GIVEN: A document that does not parse
	ctx := context.Background()
	st := newTestStore(t)
	path := filepath.Join(st.Dir(), "clients.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"oops"`), 0o644))

	// WHEN: Reading
	_, err := st.ReadCollection(ctx, generic.TypeClients)

	// THEN: Corrupt, not a storage failure
	require.ErrorIs(t, err, generic.ErrCorruptCollection)
	assert.False(t, generic.IsRetryable(err))

	// WHEN: Writing a fresh collection
	require.NoError(t, st.WriteCollection(ctx, generic.TypeClients, generic.Collection{{"id": "n1"}}))

	// THEN: The bad document is kept aside and the new one is readable
	kept, err := os.ReadFile(path + ".corrupt-1700000000000")
	require.NoError(t, err)
	assert.Equal(t, `{"oops"`, string(kept))

	got, err := st.ReadCollection(ctx, generic.TypeClients)
	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, got.IDs())
}

func TestStore_RejectsUnsafeTypeNames(t *testing.T) {
	st := newTestStore(t)

	_, err := st.ReadCollection(context.Background(), generic.EntityType("../secrets"))
	assert.ErrorIs(t, err, generic.ErrUnknownType)
}

func TestStore_UnreadableDirectoryIsStorageError(t *testing.T) {
	st := newTestStore(t)
	// A directory where the document should be makes ReadFile fail.
	require.NoError(t, os.Mkdir(filepath.Join(st.Dir(), "tasks.json"), 0o755))

	_, err := st.ReadCollection(context.Background(), generic.TypeTasks)
	assert.ErrorIs(t, err, generic.ErrStorageUnavailable)
}
