/*
scenarios.go - Seed datasets for demos and tests

PURPOSE:
  Provides named datasets that replace every collection in one call, so
  the dashboard can be shown with realistic data.

AVAILABLE SCENARIOS:
  empty:   Every collection empty
  sample:  One client (the data a fresh install starts with)
  agency:  A small agency: clients, projects, invoices, devices, events, tasks

HOW SCENARIOS WORK:
 1. Build the dataset with timestamps relative to the handler clock
 2. Normalize address fields the same way Create does
 3. Replace every registered collection (types absent from the
    dataset become empty)

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "agency"}

NOTE:
  Loading a scenario overwrites data. Only use in development/demo setups.

SEE ALSO:
  - handlers.go: Handler
  - resource/service.go: Replace
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/dashboard-engine/generic"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	build func(now time.Time) map[generic.EntityType]generic.Collection
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{ID: "empty", Name: "Empty", Description: "No data in any collection"},
		build:       func(time.Time) map[generic.EntityType]generic.Collection { return nil },
	},
	{
		ScenarioDTO: ScenarioDTO{ID: "sample", Name: "Sample", Description: "A single sample client"},
		build:       sampleData,
	},
	{
		ScenarioDTO: ScenarioDTO{ID: "agency", Name: "Agency", Description: "Clients with projects, invoices, devices, events and tasks"},
		build:       agencyData,
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	out := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		out[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, out)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	s, _ := findScenario(current)
	writeJSON(w, http.StatusOK, s.ScenarioDTO)
}

// LoadScenario replaces every collection with a scenario's dataset.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	counts, err := h.Load(r.Context(), req.ScenarioID)
	if err != nil {
		if _, ok := findScenario(req.ScenarioID); !ok {
			writeError(w, http.StatusBadRequest, "Unknown scenario", err)
			return
		}
		h.writeServiceError(w, r, "", err)
		return
	}

	writeJSON(w, http.StatusOK, LoadScenarioResponse{Status: "loaded", Scenario: req.ScenarioID, Counts: counts})
}

// =============================================================================
// LOADING
// =============================================================================

// Load replaces every registered collection with the scenario's data and
// returns the number of entities written per type.
func (h *Handler) Load(ctx context.Context, id string) (map[string]int, error) {
	s, ok := findScenario(id)
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q", id)
	}
	data, err := h.prepare(s)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	counts := map[string]int{}
	for _, t := range h.Resources.Types() {
		coll := data[t]
		if coll == nil {
			coll = generic.Collection{}
		}
		if err := h.Resources.Replace(ctx, t, coll); err != nil {
			return nil, fmt.Errorf("load %s: %w", t, err)
		}
		counts[string(t)] = len(coll)
	}

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
	h.Logger.Info("scenario loaded", "scenario", id)
	return counts, nil
}

// EnsureSampleData seeds the sample dataset into collections that are
// still empty. It reports whether anything was written.
func (h *Handler) EnsureSampleData(ctx context.Context) (bool, error) {
	s, _ := findScenario("sample")
	data, err := h.prepare(s)
	if err != nil {
		return false, err
	}

	seeded := false
	for _, t := range h.Resources.Types() {
		coll, ok := data[t]
		if !ok || len(coll) == 0 {
			continue
		}
		existing, err := h.Resources.List(ctx, t, generic.Params{})
		if err != nil {
			return seeded, err
		}
		if len(existing) > 0 {
			h.Logger.Debug("using existing data", "type", t, "count", len(existing))
			continue
		}
		if err := h.Resources.Replace(ctx, t, coll); err != nil {
			return seeded, fmt.Errorf("seed %s: %w", t, err)
		}
		h.Logger.Info("sample data created", "type", t, "count", len(coll))
		seeded = true
	}
	return seeded, nil
}

// prepare builds the dataset and normalizes addresses per schema. Types
// that are not registered are dropped.
func (h *Handler) prepare(s scenario) (map[generic.EntityType]generic.Collection, error) {
	data := s.build(h.clock())
	out := make(map[generic.EntityType]generic.Collection, len(data))
	for t, coll := range data {
		schema, err := h.Resources.Schema(t)
		if err != nil {
			continue
		}
		for _, e := range coll {
			if err := generic.NormalizeAddressFields(e, schema.AddressFields); err != nil {
				return nil, fmt.Errorf("scenario %s: %w", s.ID, err)
			}
		}
		out[t] = coll
	}
	return out, nil
}

// =============================================================================
// DATASETS
// =============================================================================

func stamp(now time.Time, daysAgo int) string {
	return generic.FormatTimestamp(now.AddDate(0, 0, -daysAgo))
}

func day(now time.Time, offset int) string {
	return now.AddDate(0, 0, offset).Format("2006-01-02")
}

func withTimestamps(e generic.Entity, now time.Time, createdDaysAgo, updatedDaysAgo int) generic.Entity {
	e[generic.FieldCreatedAt] = stamp(now, createdDaysAgo)
	e[generic.FieldUpdatedAt] = stamp(now, updatedDaysAgo)
	return e
}

func sampleData(now time.Time) map[generic.EntityType]generic.Collection {
	return map[generic.EntityType]generic.Collection{
		generic.TypeClients: {
			withTimestamps(generic.Entity{
				"id":      "550e8400-e29b-41d4-a716-446655440000",
				"name":    "Sarah Johnson",
				"email":   "sarah@example.com",
				"phone":   "+44 7123 456789",
				"address": "123 Smart Street, London, UK",
				"company": "Johnson & Co",
				"notes":   "Interested in full home automation",
				"status":  "active",
			}, now, 0, 0),
		},
	}
}

func agencyData(now time.Time) map[generic.EntityType]generic.Collection {
	clients := generic.Collection{
		withTimestamps(generic.Entity{
			"id": "550e8400-e29b-41d4-a716-446655440000", "name": "Sarah Johnson", "email": "sarah@example.com",
			"company": "Johnson & Co", "address": "123 Smart Street, London, UK", "status": "active",
		}, now, 90, 10),
		withTimestamps(generic.Entity{
			"id": "6f1c2a7e-3b4d-4e5f-8a9b-0c1d2e3f4a5b", "name": "Marcus Lee", "email": "marcus@northwind.io",
			"company": "Northwind", "address": map[string]any{"street": "8 Harbour Road", "city": "Bristol", "country": "UK"},
			"status": "active",
		}, now, 60, 5),
		withTimestamps(generic.Entity{
			"id": "9a8b7c6d-5e4f-4a3b-9c2d-1e0f9a8b7c6d", "name": "Priya Patel", "email": "priya@brightloop.co",
			"company": "Brightloop", "status": "lead",
		}, now, 7, 7),
	}
	projects := generic.Collection{
		withTimestamps(generic.Entity{
			"id": "PRJ-1001", "name": "Smart Home Retrofit", "clientId": clients[0].ID(), "clientName": "Sarah Johnson",
			"description": "Lighting, heating and security automation", "status": "active",
			"progress": json.Number("65"), "team": []any{"u-ana", "u-ben"},
			"startDate": day(now, -45), "endDate": day(now, 30),
		}, now, 45, 2),
		withTimestamps(generic.Entity{
			"id": "PRJ-1002", "name": "Office Network Upgrade", "clientId": clients[1].ID(), "clientName": "Marcus Lee",
			"description": "Structured cabling and Wi-Fi survey", "status": "planning",
			"progress": json.Number("0"), "team": []any{"u-ben"},
			"startDate": day(now, 14), "endDate": day(now, 60),
		}, now, 20, 20),
		withTimestamps(generic.Entity{
			"id": "PRJ-1003", "name": "Showroom Lighting", "clientId": clients[0].ID(), "clientName": "Sarah Johnson",
			"status": "completed", "progress": json.Number("100"), "team": []any{"u-ana"},
			"startDate": day(now, -120), "endDate": day(now, -80),
		}, now, 120, 80),
	}
	invoices := generic.Collection{
		withTimestamps(generic.Entity{
			"id": "INV-2001", "clientId": clients[0].ID(), "clientName": "Sarah Johnson", "status": "paid",
			"items": []any{map[string]any{"description": "Design phase", "quantity": json.Number("1"), "price": json.Number("1200.00")}},
			"total": json.Number("1200.00"), "tax": json.Number("240.00"), "amountDue": json.Number("0"),
			"dueDate": day(now, -60),
		}, now, 80, 60),
		withTimestamps(generic.Entity{
			"id": "INV-2002", "clientId": clients[0].ID(), "clientName": "Sarah Johnson", "status": "sent",
			"items": []any{}, "total": json.Number("850.50"), "tax": json.Number("170.10"), "amountDue": json.Number("850.50"),
			"dueDate": day(now, 10),
		}, now, 4, 4),
		withTimestamps(generic.Entity{
			"id": "INV-2003", "clientId": clients[1].ID(), "clientName": "Marcus Lee", "status": "overdue",
			"items": []any{}, "total": json.Number("300.25"), "tax": json.Number("60.05"), "amountDue": json.Number("300.25"),
			"dueDate": day(now, -3), "notes": "Second reminder sent",
		}, now, 40, 3),
		withTimestamps(generic.Entity{
			"id": "INV-2004", "clientId": clients[1].ID(), "clientName": "Marcus Lee", "status": "draft",
			"items": []any{}, "total": json.Number("99.99"), "tax": json.Number("0"), "amountDue": json.Number("99.99"),
		}, now, 1, 1),
	}
	devices := generic.Collection{
		withTimestamps(generic.Entity{
			"id": "dev-hub-01", "name": "Living Room Hub", "type": "hub", "location": "Living room",
			"status": "active", "clientId": clients[0].ID(),
		}, now, 40, 1),
		withTimestamps(generic.Entity{
			"id": "dev-thermo-01", "name": "Hallway Thermostat", "type": "thermostat", "location": "Hallway",
			"status": "maintenance", "clientId": clients[0].ID(),
		}, now, 40, 6),
	}
	events := generic.Collection{
		withTimestamps(generic.Entity{
			"id": "evt-01", "title": "Site survey", "description": "Network survey at Northwind",
			"location": "Bristol", "start": stamp(now, -14), "clientId": clients[1].ID(),
		}, now, 20, 20),
	}
	tasks := generic.Collection{
		withTimestamps(generic.Entity{
			"id": "task-01", "title": "Order thermostat parts", "projectId": "PRJ-1001", "status": "todo",
		}, now, 3, 3),
		withTimestamps(generic.Entity{
			"id": "task-02", "title": "Send survey report", "projectId": "PRJ-1002", "status": "done",
		}, now, 10, 2),
	}
	return map[generic.EntityType]generic.Collection{
		generic.TypeClients:  clients,
		generic.TypeProjects: projects,
		generic.TypeInvoices: invoices,
		generic.TypeDevices:  devices,
		generic.TypeEvents:   events,
		generic.TypeTasks:    tasks,
	}
}
