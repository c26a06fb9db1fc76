package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/warp/dashboard-engine/generic"
	"github.com/warp/dashboard-engine/pipeline"
)

// recentProjectLimit caps the recent projects list.
const recentProjectLimit = 5

// GetDashboard summarizes every collection.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.Dashboard(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "", err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

// Dashboard computes the summary: counts per type, project status
// breakdown, invoice totals and recently updated projects.
func (h *Handler) Dashboard(ctx context.Context) (DashboardDTO, error) {
	dash := DashboardDTO{
		Counts:         map[string]int{},
		ProjectStatus:  []StatusCountDTO{},
		RecentProjects: []RecentProjectDTO{},
		Invoices:       InvoiceTotalsDTO{Paid: money(decimal.Zero), Outstanding: money(decimal.Zero), Draft: money(decimal.Zero)},
	}

	collections := map[generic.EntityType]generic.Collection{}
	for _, t := range h.Resources.Types() {
		coll, err := h.Resources.List(ctx, t, generic.Params{})
		if err != nil {
			return DashboardDTO{}, err
		}
		collections[t] = coll
		dash.Counts[string(t)] = len(coll)
	}

	if projects, ok := collections[generic.TypeProjects]; ok {
		dash.ProjectStatus = h.projectStatus(projects)
		dash.RecentProjects = recentProjects(projects)
	}
	if invoices, ok := collections[generic.TypeInvoices]; ok {
		dash.Invoices = invoiceTotals(invoices)
	}
	return dash, nil
}

// projectStatus counts projects per status. Known statuses come first in
// schema order (zero counts included); others follow sorted.
func (h *Handler) projectStatus(projects generic.Collection) []StatusCountDTO {
	counts := map[string]int{}
	for _, p := range projects {
		status, _ := p.String("status")
		if status == "" {
			continue
		}
		counts[status]++
	}

	var order []string
	if schema, err := h.Resources.Schema(generic.TypeProjects); err == nil {
		order = append(order, schema.Enums["status"]...)
	}
	var extra []string
	for status := range counts {
		if !slices.Contains(order, status) {
			extra = append(extra, status)
		}
	}
	slices.Sort(extra)
	order = append(order, extra...)

	out := make([]StatusCountDTO, 0, len(order))
	for _, status := range order {
		out = append(out, StatusCountDTO{Status: status, Count: counts[status]})
	}
	return out
}

func recentProjects(projects generic.Collection) []RecentProjectDTO {
	byUpdate := pipeline.Config{DateField: generic.FieldUpdatedAt}
	sorted := byUpdate.Apply(projects, pipeline.State{SortBy: pipeline.SortDateDesc})

	out := make([]RecentProjectDTO, 0, recentProjectLimit)
	for _, p := range sorted {
		if len(out) == recentProjectLimit {
			break
		}
		name, _ := p.String("name")
		status, _ := p.String("status")
		out = append(out, RecentProjectDTO{ID: p.ID(), Name: name, Status: status, Progress: p["progress"]})
	}
	return out
}

// invoiceTotals sums invoice totals by status with exact decimal arithmetic.
// Outstanding is sent plus overdue. Unparseable totals count as zero.
func invoiceTotals(invoices generic.Collection) InvoiceTotalsDTO {
	paid, outstanding, draft := decimal.Zero, decimal.Zero, decimal.Zero
	for _, inv := range invoices {
		amount := amountOf(inv["total"])
		status, _ := inv.String("status")
		switch status {
		case "paid":
			paid = paid.Add(amount)
		case "sent", "overdue":
			outstanding = outstanding.Add(amount)
		case "draft":
			draft = draft.Add(amount)
		}
	}
	return InvoiceTotalsDTO{
		Count:       len(invoices),
		Paid:        money(paid),
		Outstanding: money(outstanding),
		Draft:       money(draft),
	}
}

func amountOf(v any) decimal.Decimal {
	s, ok := generic.Scalar(v)
	if !ok {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}
