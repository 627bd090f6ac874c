// Package stridesdk is a small client for the Stride HTTP API.
package stridesdk

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
)

// Client is a minimal Stride HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// Requirement represents the API requirement model.
type Requirement struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Description       string   `json:"description,omitempty"`
	SourceType        string   `json:"source_type"`
	Priority          string   `json:"priority"`
	TechLevel         string   `json:"tech_level"`
	TherapyDomains    []string `json:"therapy_domains"`
	DisabilityTypes   []string `json:"disability_types"`
	GapFlags          []string `json:"gap_flags"`
	MarketPrice       *float64 `json:"market_price,omitempty"`
	TargetPrice       *float64 `json:"target_price,omitempty"`
	CurrentState      string   `json:"current_state"`
	PathAssignment    string   `json:"path_assignment,omitempty"`
	PathJustification string   `json:"path_justification,omitempty"`
	RevisionNumber    int      `json:"revision_number"`
	Version           int64    `json:"version"`
	CreatedAt         string   `json:"created_at"`
	UpdatedAt         string   `json:"updated_at"`
}

// NewRequirement is the payload for CreateRequirement.
type NewRequirement struct {
	Title           string   `json:"title"`
	Description     string   `json:"description,omitempty"`
	SourceType      string   `json:"source_type"`
	Priority        string   `json:"priority,omitempty"`
	TechLevel       string   `json:"tech_level,omitempty"`
	TherapyDomains  []string `json:"therapy_domains,omitempty"`
	DisabilityTypes []string `json:"disability_types,omitempty"`
	GapFlags        []string `json:"gap_flags,omitempty"`
	MarketPrice     *float64 `json:"market_price,omitempty"`
	TargetPrice     *float64 `json:"target_price,omitempty"`
}

// Advance is the payload for AdvanceRequirement.
type Advance struct {
	To               string            `json:"to"`
	Notes            string            `json:"notes,omitempty"`
	BlockersResolved []string          `json:"blockers_resolved,omitempty"`
	KeyDecisions     []string          `json:"key_decisions,omitempty"`
	Gates            map[string]bool   `json:"gates,omitempty"`
	PhaseData        map[string]string `json:"phase_data,omitempty"`
}

// State is one entry of the pipeline registry.
type State struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Phase string `json:"phase"`
}

// AgingEntry is one row of the aging report.
type AgingEntry struct {
	Requirement Requirement `json:"requirement"`
	EnteredAt   string      `json:"entered_at"`
	DaysInPhase int         `json:"days_in_phase"`
	Threshold   int         `json:"threshold"`
	OverdueBy   int         `json:"overdue_by"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// RequirementPage wraps list responses with cursors.
type RequirementPage struct {
	Items      []Requirement `json:"items"`
	NextCursor string        `json:"next_cursor"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses. Code is the envelope error code when the
// body carries one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateRequirement captures a new requirement at S1.
func (c *Client) CreateRequirement(ctx context.Context, in NewRequirement) (Requirement, error) {
	var resp Requirement
	err := c.do(ctx, http.MethodPost, "requirements", in, &resp)
	return resp, err
}

// GetRequirement fetches one requirement.
func (c *Client) GetRequirement(ctx context.Context, id string) (Requirement, error) {
	var resp struct {
		Requirement Requirement `json:"requirement"`
	}
	err := c.do(ctx, http.MethodGet, "requirements/"+url.PathEscape(id), nil, &resp)
	return resp.Requirement, err
}

// ListRequirements returns one page filtered by state ("" for all).
func (c *Client) ListRequirements(ctx context.Context, state string, limit int, cursor string) (RequirementPage, error) {
	q := url.Values{}
	if state != "" {
		q.Set("state", state)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var resp RequirementPage
	err := c.do(ctx, http.MethodGet, withQuery("requirements", q), nil, &resp)
	return resp, err
}

// NextStates lists the states a requirement may move to.
func (c *Client) NextStates(ctx context.Context, id string) ([]State, error) {
	var resp []State
	err := c.do(ctx, http.MethodGet, "requirements/"+url.PathEscape(id)+"/next-states", nil, &resp)
	return resp, err
}

// AdvanceRequirement moves a requirement to in.To.
func (c *Client) AdvanceRequirement(ctx context.Context, id string, in Advance) (Requirement, error) {
	var resp Requirement
	err := c.do(ctx, http.MethodPost, "requirements/"+url.PathEscape(id)+"/advance", in, &resp)
	return resp, err
}

// AssignPath chooses INTERNAL or DESIGNATHON at S4.
func (c *Client) AssignPath(ctx context.Context, id, path, justification string) (Requirement, error) {
	body := map[string]string{"path": path, "justification": justification}
	var resp Requirement
	err := c.do(ctx, http.MethodPost, "requirements/"+url.PathEscape(id)+"/path", body, &resp)
	return resp, err
}

// Aging returns requirements past their phase threshold.
func (c *Client) Aging(ctx context.Context) ([]AgingEntry, error) {
	var resp []AgingEntry
	err := c.do(ctx, http.MethodGet, "aging", nil, &resp)
	return resp, err
}

// EventsPage returns a paginated event listing, newest first.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, withQuery("events", q), nil, &resp)
	return resp, err
}

func withQuery(endpoint string, q url.Values) string {
	if len(q) == 0 {
		return endpoint
	}
	return endpoint + "?" + q.Encode()
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code, apiErr.Message = env.Error.Code, env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.Trim(c.BasePath, "/")
}
