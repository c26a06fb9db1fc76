package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/warp/dashboard-engine/generic"
)

// =============================================================================
// HTTP CLIENT - generic.Resources over the REST API
// =============================================================================

// APIError is a non-2xx response. Message is the body's "error" field.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Unwrap maps the status onto the shared sentinels so callers can use
// errors.Is regardless of transport.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return generic.ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return generic.ErrValidation
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return generic.ErrStorageUnavailable
	default:
		return nil
	}
}

// HTTPClient talks to a dashboard server at BaseURL (e.g. http://localhost:3001).
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient creates a client. A nil hc gets a 30s-timeout client.
func NewHTTPClient(baseURL string, hc *http.Client) *HTTPClient {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *HTTPClient) endpoint(t generic.EntityType, id string) string {
	u := c.baseURL + "/api/" + url.PathEscape(string(t))
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	return u
}

// List issues GET /api/{type}?params.
func (c *HTTPClient) List(ctx context.Context, t generic.EntityType, params generic.Params) (generic.Collection, error) {
	u := c.endpoint(t, "")
	if q := params.Encode(); q != "" {
		u += "?" + q
	}
	body, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	coll, err := generic.DecodeCollection(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s list: %w", t, err)
	}
	return coll, nil
}

// Get issues GET /api/{type}/{id}.
func (c *HTTPClient) Get(ctx context.Context, t generic.EntityType, id string) (generic.Entity, error) {
	if id == "" {
		return nil, &generic.NotFoundError{Type: t}
	}
	return c.entity(ctx, http.MethodGet, c.endpoint(t, id), nil)
}

// Create issues POST /api/{type}.
func (c *HTTPClient) Create(ctx context.Context, t generic.EntityType, fields generic.Entity) (generic.Entity, error) {
	return c.entity(ctx, http.MethodPost, c.endpoint(t, ""), fields)
}

// Update issues PATCH /api/{type}/{id}.
func (c *HTTPClient) Update(ctx context.Context, t generic.EntityType, id string, fields generic.Entity) (generic.Entity, error) {
	if id == "" {
		return nil, &generic.NotFoundError{Type: t}
	}
	return c.entity(ctx, http.MethodPatch, c.endpoint(t, id), fields)
}

// Remove issues DELETE /api/{type}/{id}.
func (c *HTTPClient) Remove(ctx context.Context, t generic.EntityType, id string) error {
	if id == "" {
		return &generic.NotFoundError{Type: t}
	}
	_, err := c.do(ctx, http.MethodDelete, c.endpoint(t, id), nil)
	return err
}

// Types issues GET /api/types.
func (c *HTTPClient) Types(ctx context.Context) ([]generic.EntityType, error) {
	body, err := c.do(ctx, http.MethodGet, c.baseURL+"/api/types", nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Types []generic.EntityType `json:"types"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode types: %w", err)
	}
	return resp.Types, nil
}

func (c *HTTPClient) entity(ctx context.Context, method, u string, payload generic.Entity) (generic.Entity, error) {
	body, err := c.do(ctx, method, u, payload)
	if err != nil {
		return nil, err
	}
	e, err := generic.DecodeEntity(body)
	if err != nil {
		return nil, fmt.Errorf("decode entity: %w", err)
	}
	return e, nil
}

func (c *HTTPClient) do(ctx context.Context, method, u string, payload generic.Entity) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, u, &APIError{Status: http.StatusServiceUnavailable, Message: err.Error()})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(body, resp.Status)}
	}
	return body, nil
}

func errorMessage(body []byte, fallback string) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return fallback
}
