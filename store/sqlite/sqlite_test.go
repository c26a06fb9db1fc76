package sqlite_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/dashboard-engine/generic"
	"github.com/warp/dashboard-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSQLite_MissingCollectionIsEmpty(t *testing.T) {
	st := newStore(t)

	coll, err := st.ReadCollection(context.Background(), generic.TypeInvoices)
	require.NoError(t, err)
	assert.Empty(t, coll)
}

func TestSQLite_WriteReplacesCollection(t *testing.T) {
	// GIVEN: Two consecutive writes
	ctx := context.Background()
	st := newStore(t)
	require.NoError(t, st.WriteCollection(ctx, generic.TypeClients, generic.Collection{{"id": "a"}, {"id": "b"}}))
	require.NoError(t, st.WriteCollection(ctx, generic.TypeClients, generic.Collection{{"id": "c"}}))

	// THEN: Only the last one is visible
	coll, err := st.ReadCollection(ctx, generic.TypeClients)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, coll.IDs())
}

func TestSQLite_QueryPushdownMatchesInMemoryFilter(t *testing.T) {
	// GIVEN: Mixed value kinds
	ctx := context.Background()
	st := newStore(t)
	coll := generic.Collection{
		{"id": "p1", "clientId": "c1", "status": "active", "progress": json.Number("40"), "billable": true},
		{"id": "p2", "clientId": "c2", "status": "active", "progress": json.Number("40.5"), "billable": false},
		{"id": "p3", "clientId": "c1", "status": "planning", "progress": json.Number("0")},
		{"id": "p4", "clientId": "c1", "status": "active", "progress": json.Number("40"), "billable": true},
	}
	require.NoError(t, st.WriteCollection(ctx, generic.TypeProjects, coll))

	cases := []map[string]string{
		{"clientId": "c1"},
		{"clientId": "c1", "status": "active"},
		{"progress": "40"},
		{"progress": "40.5"},
		{"billable": "true"},
		{"billable": "false"},
		{"status": "all"},
		{"missing": "x"},
		{"weird field": "x"},
	}
	for _, m := range cases {
		params := generic.NewParams(m)
		t.Run(params.Encode(), func(t *testing.T) {
			got, err := st.QueryCollection(ctx, generic.TypeProjects, params)
			require.NoError(t, err)
			assert.Equal(t, generic.FilterCollection(coll, params).IDs(), got.IDs())
		})
	}
}

func TestSQLite_QueryKeepsCollectionOrder(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	var coll generic.Collection
	for _, id := range []string{"z", "a", "m", "b", "y", "c", "x", "d", "w", "e", "v"} {
		coll = append(coll, generic.Entity{"id": id, "kind": "k"})
	}
	require.NoError(t, st.WriteCollection(ctx, generic.TypeTasks, coll))

	got, err := st.QueryCollection(ctx, generic.TypeTasks, generic.NewParams(map[string]string{"kind": "k"}))
	require.NoError(t, err)
	assert.Equal(t, coll.IDs(), got.IDs())
}
