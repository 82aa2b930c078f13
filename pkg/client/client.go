// Package client is a Go client for the affectdb HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/daniacca/affectdb/internal/affect"
)

// AffectBuilder provides a fluent API for describing an incoming affect.
type AffectBuilder struct {
	kind     string
	quantity float64
	level    int
	onset    float64
	at       *float64
}

// NewAffect starts an affect of the named kind ("Fire", "Water", ...).
// Quantity defaults to 1 and the rate level to 1.
func NewAffect(kind string) *AffectBuilder {
	return &AffectBuilder{kind: kind, quantity: 1, level: 1}
}

// Quantity sets the magnitude of the affect.
func (ab *AffectBuilder) Quantity(q float64) *AffectBuilder {
	ab.quantity = q
	return ab
}

// Level sets the decay rate level (1, 2 or 4). Ignored for Freeze.
func (ab *AffectBuilder) Level(level int) *AffectBuilder {
	ab.level = level
	return ab
}

// Onset sets when a Freeze affect formed.
func (ab *AffectBuilder) Onset(t float64) *AffectBuilder {
	ab.onset = t
	return ab
}

// At applies the affect at simulation time t; the target decays up to t first.
func (ab *AffectBuilder) At(t float64) *AffectBuilder {
	ab.at = &t
	return ab
}

// ApplyRequest is the JSON body of POST /targets/{id}/affects.
type ApplyRequest struct {
	Kind     string   `json:"kind"`
	Quantity float64  `json:"quantity"`
	Level    int      `json:"level,omitempty"`
	Onset    float64  `json:"onset,omitempty"`
	Now      *float64 `json:"now,omitempty"`
}

// Build validates the kind name and returns the request body.
func (ab *AffectBuilder) Build() (ApplyRequest, error) {
	kind, err := affect.ParseKind(ab.kind)
	if err != nil {
		return ApplyRequest{}, err
	}
	req := ApplyRequest{Kind: kind.String(), Quantity: ab.quantity, Now: ab.at}
	if kind == affect.Freeze {
		req.Onset = ab.onset
	} else {
		req.Level = ab.level
	}
	return req, nil
}

// WebhookBuilder provides a fluent API for registering a webhook notifier.
type WebhookBuilder struct {
	id      string
	url     string
	headers map[string]string
	events  []string
}

// NewWebhook creates a webhook notifier posting reaction events to url.
func NewWebhook(id, url string) *WebhookBuilder {
	return &WebhookBuilder{id: id, url: url, headers: make(map[string]string)}
}

// Header adds an HTTP header sent with every delivery.
func (wb *WebhookBuilder) Header(key, value string) *WebhookBuilder {
	wb.headers[key] = value
	return wb
}

// Events restricts deliveries to the given event types ("freeze", "matchup", ...).
func (wb *WebhookBuilder) Events(types ...string) *WebhookBuilder {
	wb.events = append(wb.events, types...)
	return wb
}

// NotifierRequest is the JSON body of POST /notifiers.
type NotifierRequest struct {
	Type   string         `json:"type"`
	ID     string         `json:"id"`
	Config NotifierConfig `json:"config"`
}

// NotifierConfig carries webhook settings.
type NotifierConfig struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Events  []string          `json:"events,omitempty"`
}

// Build returns the request body.
func (wb *WebhookBuilder) Build() NotifierRequest {
	return NotifierRequest{
		Type: "webhook",
		ID:   wb.id,
		Config: NotifierConfig{
			URL:     wb.url,
			Headers: wb.headers,
			Events:  wb.events,
		},
	}
}

// Target is the server's view of a target.
type Target struct {
	ID      string          `json:"id"`
	Time    float64         `json:"time"`
	State   []affect.Affect `json:"state"`
	Running bool            `json:"running"`
}

// ApplyResult is the outcome of applying one affect.
type ApplyResult struct {
	TargetID string          `json:"target_id"`
	Time     float64         `json:"time"`
	State    []affect.Affect `json:"state"`
	Events   []affect.Event  `json:"events"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

// Client talks to an affectdb server.
type Client struct {
	// BaseURL is the server's base URL, e.g. "http://localhost:8080".
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a client for baseURL using http.DefaultClient.
func New(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTPClient: http.DefaultClient}
}

// CreateTarget creates a target. An empty id lets the server pick one.
func (c *Client) CreateTarget(ctx context.Context, id string) (Target, error) {
	var out Target
	body := map[string]string{}
	if id != "" {
		body["id"] = id
	}
	err := c.do(ctx, http.MethodPost, body, &out, "targets")
	return out, err
}

// GetTarget fetches a target's state and clock.
func (c *Client) GetTarget(ctx context.Context, id string) (Target, error) {
	var out Target
	err := c.do(ctx, http.MethodGet, nil, &out, "targets", id)
	return out, err
}

// ListTargets returns every target ID.
func (c *Client) ListTargets(ctx context.Context) ([]string, error) {
	var out struct {
		Targets []string `json:"targets"`
	}
	err := c.do(ctx, http.MethodGet, nil, &out, "targets")
	return out.Targets, err
}

// DeleteTarget removes a target.
func (c *Client) DeleteTarget(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, nil, nil, "targets", id)
}

// Apply sends an affect to a target.
func (c *Client) Apply(ctx context.Context, id string, ab *AffectBuilder) (ApplyResult, error) {
	req, err := ab.Build()
	if err != nil {
		return ApplyResult{}, fmt.Errorf("failed to build affect: %w", err)
	}
	var out ApplyResult
	err = c.do(ctx, http.MethodPost, req, &out, "targets", id, "affects")
	return out, err
}

// Advance decays a target up to simulation time to.
func (c *Client) Advance(ctx context.Context, id string, to float64) (Target, error) {
	var out Target
	err := c.do(ctx, http.MethodPost, map[string]float64{"to": to}, &out, "targets", id, "advance")
	return out, err
}

// Snapshot asks the server to persist a target.
func (c *Client) Snapshot(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, nil, nil, "targets", id, "snapshot")
}

// Restore reloads a target from its persisted snapshot.
func (c *Client) Restore(ctx context.Context, id string) (Target, error) {
	var out Target
	err := c.do(ctx, http.MethodPost, nil, &out, "targets", id, "restore")
	return out, err
}

// ListSnapshots returns the IDs of targets with a persisted snapshot.
func (c *Client) ListSnapshots(ctx context.Context) ([]string, error) {
	var out struct {
		Snapshots []string `json:"snapshots"`
	}
	err := c.do(ctx, http.MethodGet, nil, &out, "snapshots")
	return out.Snapshots, err
}

// DeleteSnapshot drops a target's persisted snapshot.
func (c *Client) DeleteSnapshot(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, nil, nil, "targets", id, "snapshot")
}

// RegisterWebhook registers a webhook notifier.
func (c *Client) RegisterWebhook(ctx context.Context, wb *WebhookBuilder) error {
	return c.do(ctx, http.MethodPost, wb.Build(), nil, "notifiers")
}

// UnregisterNotifier removes a notifier.
func (c *Client) UnregisterNotifier(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, nil, nil, "notifiers", id)
}

func (c *Client) do(ctx context.Context, method string, in, out any, path ...string) error {
	u, err := url.JoinPath(c.BaseURL, path...)
	if err != nil {
		return fmt.Errorf("failed to build URL: %w", err)
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errorMessage extracts {"error": ...} bodies, falling back to the raw text.
func errorMessage(data []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(data))
}
