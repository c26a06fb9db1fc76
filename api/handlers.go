/*
handlers.go - HTTP API handlers for the dashboard engine

PURPOSE:
  Exposes the resource service over REST. Handles HTTP request/response and
  JSON encoding, and delegates to resource.Service and pipeline.

ENDPOINTS:
  Entities (any registered type: clients, projects, invoices, ...):
    GET    /api/{type}            List, with ?search=, ?sortBy= and field filters
    POST   /api/{type}            Create (201)
    GET    /api/{type}/{id}       Get
    PATCH  /api/{type}/{id}       Partial update (merge)
    PUT    /api/{type}/{id}       Same as PATCH
    DELETE /api/{type}/{id}       Remove (204)

  Meta:
    GET    /api/types             Registered entity types
    GET    /api/dashboard         Summary across collections
    GET    /health                Liveness

REQUEST FLOW (list):
  1. search and sortBy go to the pipeline
  2. params with a registered view predicate go to the pipeline
  3. everything else is an equality filter passed to the service, which
     pushes it down to the store when it can
  4. the pipeline re-applies equality filters, so the result is the same
     whether or not the store narrowed it

ERROR HANDLING:
  Errors are returned as {"error": ..., "details": ...}:
  - 400: Validation errors, malformed JSON
  - 404: Unknown entity or unknown type
  - 503: Storage unavailable (retryable)
  - 500: Anything else

SECURITY NOTE:
  No authentication. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - dashboard.go, scenarios.go: Non-CRUD endpoints
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/warp/dashboard-engine/generic"
	"github.com/warp/dashboard-engine/pipeline"
	"github.com/warp/dashboard-engine/resource"
)

// Query parameters consumed by the pipeline rather than the store.
const (
	ParamSearch = "search"
	ParamSortBy = "sortBy"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Resources *resource.Service
	Logger    *slog.Logger

	// Gatherer backs /metrics. Nil serves the default registry.
	Gatherer prometheus.Gatherer

	// Probe backs the storage section of /health. Nil reports liveness only.
	Probe *StorageProbe

	clock generic.Clock

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.Logger = l
		}
	}
}

// WithGatherer sets the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) HandlerOption {
	return func(h *Handler) { h.Gatherer = g }
}

// WithProbe attaches a storage probe to /health.
func WithProbe(p *StorageProbe) HandlerOption {
	return func(h *Handler) { h.Probe = p }
}

// WithClock pins the time used for scenario data.
func WithClock(c generic.Clock) HandlerOption {
	return func(h *Handler) { h.clock = c }
}

// NewHandler creates a handler over the given service.
func NewHandler(svc *resource.Service, opts ...HandlerOption) *Handler {
	h := &Handler{
		Resources: svc,
		Logger:    slog.New(slog.DiscardHandler),
		clock:     generic.SystemClock,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// =============================================================================
// ENTITY HANDLERS
// =============================================================================

// ListEntities returns the visible collection for a type.
func (h *Handler) ListEntities(w http.ResponseWriter, r *http.Request) {
	t := entityType(r)
	schema, err := h.Resources.Schema(t)
	if err != nil {
		h.writeServiceError(w, r, t, err)
		return
	}

	cfg := pipeline.FromSchema(schema)
	query := r.URL.Query()
	state := pipeline.State{
		SearchTerm: query.Get(ParamSearch),
		SortBy:     query.Get(ParamSortBy),
		Filters:    map[string][]string{},
	}
	for key, values := range query {
		if key == ParamSearch || key == ParamSortBy {
			continue
		}
		state.Filters[key] = values
	}

	coll, err := h.Resources.List(r.Context(), t, generic.NewParams(cfg.Pushdown(state.Filters)))
	if err != nil {
		h.writeServiceError(w, r, t, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg.Apply(coll, state))
}

// GetEntity returns a single entity.
func (h *Handler) GetEntity(w http.ResponseWriter, r *http.Request) {
	t, id := entityType(r), chi.URLParam(r, "id")

	e, err := h.Resources.Get(r.Context(), t, id)
	if err != nil {
		h.writeServiceError(w, r, t, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// CreateEntity creates an entity from a JSON object body.
func (h *Handler) CreateEntity(w http.ResponseWriter, r *http.Request) {
	t := entityType(r)
	fields, ok := h.readEntity(w, r)
	if !ok {
		return
	}

	e, err := h.Resources.Create(r.Context(), t, fields)
	if err != nil {
		h.writeServiceError(w, r, t, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// UpdateEntity merges a JSON object body into an existing entity.
func (h *Handler) UpdateEntity(w http.ResponseWriter, r *http.Request) {
	t, id := entityType(r), chi.URLParam(r, "id")
	fields, ok := h.readEntity(w, r)
	if !ok {
		return
	}

	e, err := h.Resources.Update(r.Context(), t, id, fields)
	if err != nil {
		h.writeServiceError(w, r, t, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// DeleteEntity removes an entity.
func (h *Handler) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	t, id := entityType(r), chi.URLParam(r, "id")

	if err := h.Resources.Remove(r.Context(), t, id); err != nil {
		h.writeServiceError(w, r, t, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// META HANDLERS
// =============================================================================

// ListTypes returns the registered entity types.
func (h *Handler) ListTypes(w http.ResponseWriter, r *http.Request) {
	types := h.Resources.Types()
	out := TypesResponse{Types: make([]string, len(types))}
	for i, t := range types {
		out.Types[i] = string(t)
	}
	writeJSON(w, http.StatusOK, out)
}

// Health reports liveness and, when a probe is attached, the last storage
// check. A failed check answers 503 so load balancers can react.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Probe == nil {
		writeJSON(w, http.StatusOK, HealthDTO{Status: "ok"})
		return
	}
	last, checked := h.Probe.Last()
	if !checked {
		writeJSON(w, http.StatusOK, HealthDTO{Status: "ok", Storage: "unknown"})
		return
	}
	dto := HealthDTO{Status: "ok", Storage: "ok", CheckedAt: generic.FormatTimestamp(last.CheckedAt)}
	if !last.OK {
		dto.Status, dto.Storage = "degraded", "unavailable"
		for _, t := range last.FailedTypes {
			dto.FailedTypes = append(dto.FailedTypes, string(t))
		}
		writeJSON(w, http.StatusServiceUnavailable, dto)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// HELPERS
// =============================================================================

func entityType(r *http.Request) generic.EntityType {
	return generic.EntityType(chi.URLParam(r, "type"))
}

func (h *Handler) readEntity(w http.ResponseWriter, r *http.Request) (generic.Entity, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return nil, false
	}
	e, err := generic.DecodeEntity(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return nil, false
	}
	return e, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, t generic.EntityType, err error) {
	var verr *generic.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "Invalid "+strings.ToLower(singular(t)), err)
	case errors.Is(err, generic.ErrUnknownType):
		writeError(w, http.StatusNotFound, "Unknown entity type", err)
	case errors.Is(err, generic.ErrNotFound):
		writeError(w, http.StatusNotFound, singular(t)+" not found", nil)
	case errors.Is(err, generic.ErrStorageUnavailable):
		h.Logger.Error("storage unavailable", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, "Storage unavailable", err)
	default:
		h.Logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

// singular turns a collection name into a message noun: "clients" -> "Client".
func singular(t generic.EntityType) string {
	s := string(t)
	switch {
	case strings.HasSuffix(s, "ies"):
		s = strings.TrimSuffix(s, "ies") + "y"
	case strings.HasSuffix(s, "s"):
		s = strings.TrimSuffix(s, "s")
	}
	if s == "" {
		return "Entity"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
