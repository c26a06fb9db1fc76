/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Entities travel as plain JSON objects (generic.Entity). The types here
  cover everything else: errors, type listings, dashboard summaries and
  scenarios.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

SEE ALSO:
  - handlers.go: Uses these types
  - resource/httpclient.go: Decodes ErrorResponse and TypesResponse
*/
package api

import (
	"encoding/json"
)

// ErrorResponse is the body of every non-2xx response. Clients surface
// Error as the failure message.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// TypesResponse lists the registered entity types.
type TypesResponse struct {
	Types []string `json:"types"`
}

// HealthDTO is returned by /health.
type HealthDTO struct {
	Status      string   `json:"status"`
	Storage     string   `json:"storage,omitempty"`
	CheckedAt   string   `json:"checkedAt,omitempty"`
	FailedTypes []string `json:"failedTypes,omitempty"`
}

// =============================================================================
// DASHBOARD
// =============================================================================

// DashboardDTO summarizes every collection.
type DashboardDTO struct {
	Counts         map[string]int     `json:"counts"`
	ProjectStatus  []StatusCountDTO   `json:"projectStatus"`
	Invoices       InvoiceTotalsDTO   `json:"invoices"`
	RecentProjects []RecentProjectDTO `json:"recentProjects"`
}

// StatusCountDTO is one bar of the project status chart.
type StatusCountDTO struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// InvoiceTotalsDTO holds invoice sums with two decimal places.
type InvoiceTotalsDTO struct {
	Count       int         `json:"count"`
	Paid        json.Number `json:"paid"`
	Outstanding json.Number `json:"outstanding"`
	Draft       json.Number `json:"draft"`
}

// RecentProjectDTO is a recently updated project.
type RecentProjectDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Progress any    `json:"progress"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a loadable dataset.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// LoadScenarioResponse reports what was loaded.
type LoadScenarioResponse struct {
	Status   string         `json:"status"`
	Scenario string         `json:"scenario"`
	Counts   map[string]int `json:"counts"`
}
