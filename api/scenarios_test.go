/*
scenarios_test.go - Tests for seed scenarios and the dashboard summary
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/dashboard-engine/generic"
)

func TestScenario_ListAndCurrent(t *testing.T) {
	env := setupTestServer(t)

	status, body := env.do(t, http.MethodGet, "/api/scenarios", "")
	require.Equal(t, http.StatusOK, status)
	var list []ScenarioDTO
	require.NoError(t, json.Unmarshal(body, &list))
	ids := make([]string, len(list))
	for i, s := range list {
		ids[i] = s.ID
	}
	assert.Equal(t, []string{"empty", "sample", "agency"}, ids)

	_, body = env.do(t, http.MethodGet, "/api/scenarios/current", "")
	assert.Equal(t, "null", string(bytes.TrimSpace(body)))
}

func TestScenario_LoadAgency(t *testing.T) {
	// GIVEN: A server with one unrelated strategy
	env := setupTestServer(t)
	status, _ := env.do(t, http.MethodPost, "/api/strategies", `{"name":"Grow referrals"}`)
	require.Equal(t, http.StatusCreated, status)

	// WHEN: Loading the agency scenario
	status, body := env.do(t, http.MethodPost, "/api/scenarios/load", `{"scenario_id":"agency"}`)

	// THEN: Every collection is replaced, types absent from the dataset become empty
	require.Equal(t, http.StatusOK, status, string(body))
	var resp LoadScenarioResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "loaded", resp.Status)
	assert.Equal(t, 3, resp.Counts["clients"])
	assert.Equal(t, 4, resp.Counts["invoices"])
	assert.Equal(t, 0, resp.Counts["strategies"])

	_, body = env.do(t, http.MethodGet, "/api/strategies", "")
	assert.JSONEq(t, `[]`, string(body))

	_, body = env.do(t, http.MethodGet, "/api/scenarios/current", "")
	var current ScenarioDTO
	require.NoError(t, json.Unmarshal(body, &current))
	assert.Equal(t, "agency", current.ID)

	// AND: Freeform addresses were normalized like a create would
	_, body = env.do(t, http.MethodGet, "/api/clients/550e8400-e29b-41d4-a716-446655440000", "")
	client := decodeEntity(t, body)
	assert.Equal(t, map[string]any{"street": "123 Smart Street", "city": "London", "country": "UK"}, client["address"])
}

func TestScenario_UnknownIs400(t *testing.T) {
	env := setupTestServer(t)

	status, body := env.do(t, http.MethodPost, "/api/scenarios/load", `{"scenario_id":"nope"}`)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Unknown scenario", decodeError(t, body).Error)
}

func TestScenario_EmptyClearsEverything(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	_, err := env.h.Load(ctx, "agency")
	require.NoError(t, err)

	counts, err := env.h.Load(ctx, "empty")
	require.NoError(t, err)

	for typ, n := range counts {
		assert.Zero(t, n, typ)
	}
	coll, err := env.h.Resources.List(ctx, generic.TypeProjects, generic.Params{})
	require.NoError(t, err)
	assert.Empty(t, coll)
}

func TestEnsureSampleData_OnlySeedsEmptyCollections(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	// WHEN: Seeding a fresh store
	seeded, err := env.h.EnsureSampleData(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)

	clients, err := env.h.Resources.List(ctx, generic.TypeClients, generic.Params{})
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "Sarah Johnson", clients[0]["name"])
	assert.Equal(t, "2024-03-10T09:00:00.000Z", clients[0][generic.FieldCreatedAt])

	// WHEN: Seeding again
	seeded, err = env.h.EnsureSampleData(ctx)
	require.NoError(t, err)

	// THEN: Existing data is kept
	assert.False(t, seeded)
	clients, err = env.h.Resources.List(ctx, generic.TypeClients, generic.Params{})
	require.NoError(t, err)
	assert.Len(t, clients, 1)
}

// =============================================================================
// DASHBOARD
// =============================================================================

func TestDashboard_AgencySummary(t *testing.T) {
	// GIVEN: The agency scenario
	env := setupTestServer(t)
	_, err := env.h.Load(context.Background(), "agency")
	require.NoError(t, err)

	// WHEN: Fetching the dashboard
	status, body := env.do(t, http.MethodGet, "/api/dashboard", "")
	require.Equal(t, http.StatusOK, status)
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var dash DashboardDTO
	require.NoError(t, dec.Decode(&dash))

	// THEN: Counts cover every registered type
	assert.Equal(t, 3, dash.Counts["clients"])
	assert.Equal(t, 3, dash.Counts["projects"])
	assert.Equal(t, 2, dash.Counts["devices"])
	assert.Equal(t, 0, dash.Counts["timelines"])

	// AND: Invoice totals are exact
	assert.Equal(t, 4, dash.Invoices.Count)
	assert.Equal(t, json.Number("1200.00"), dash.Invoices.Paid)
	assert.Equal(t, json.Number("1150.75"), dash.Invoices.Outstanding)
	assert.Equal(t, json.Number("99.99"), dash.Invoices.Draft)

	// AND: Project statuses follow the schema order, zeros included
	assert.Equal(t, []StatusCountDTO{
		{Status: "planning", Count: 1},
		{Status: "active", Count: 1},
		{Status: "on-hold", Count: 0},
		{Status: "completed", Count: 1},
		{Status: "cancelled", Count: 0},
	}, dash.ProjectStatus)

	// AND: Recent projects are newest update first
	require.Len(t, dash.RecentProjects, 3)
	assert.Equal(t, "PRJ-1001", dash.RecentProjects[0].ID)
	assert.Equal(t, json.Number("65"), dash.RecentProjects[0].Progress)
	assert.Equal(t, "PRJ-1003", dash.RecentProjects[2].ID)
}

func TestDashboard_EmptyStore(t *testing.T) {
	env := setupTestServer(t)

	dash, err := env.h.Dashboard(context.Background())

	require.NoError(t, err)
	assert.Equal(t, json.Number("0.00"), dash.Invoices.Paid)
	assert.Empty(t, dash.RecentProjects)
	assert.Len(t, dash.ProjectStatus, 5)
}

func TestInvoiceTotals_IgnoresUnparseableAmounts(t *testing.T) {
	got := invoiceTotals(generic.Collection{
		{"id": "a", "status": "paid", "total": json.Number("0.10")},
		{"id": "b", "status": "paid", "total": json.Number("0.20")},
		{"id": "c", "status": "paid", "total": "n/a"},
		{"id": "d", "status": "cancelled", "total": json.Number("5")},
	})

	assert.Equal(t, json.Number("0.30"), got.Paid)
	assert.Equal(t, json.Number("0.00"), got.Outstanding)
	assert.Equal(t, 4, got.Count)
}
