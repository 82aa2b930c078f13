package notifiers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/daniacca/affectdb/internal/affect"
)

const (
	webhookTimeout = 5 * time.Second
	// Bodies past this size are not read back; the connection is dropped.
	webhookMaxDrain = 64 << 10

	// EventHeader carries the reaction event type on every delivery.
	EventHeader = "X-Affectdb-Event"
	// TargetHeader carries the ID of the target that reacted.
	TargetHeader = "X-Affectdb-Target"
)

// StatusError reports a webhook endpoint that answered outside 2xx.
type StatusError struct {
	Endpoint string
	Status   int
}

func (e *StatusError) Error() string {
	return "webhook " + e.Endpoint + " answered " + http.StatusText(e.Status)
}

// WebhookOption configures a Webhook.
type WebhookOption func(*Webhook)

// WithHeader adds a header to every delivery.
func WithHeader(key, value string) WebhookOption {
	return func(w *Webhook) { w.header.Set(key, value) }
}

// WithEventTypes delivers only the listed reaction event types.
func WithEventTypes(types ...affect.EventType) WebhookOption {
	return func(w *Webhook) {
		if len(types) == 0 {
			w.accept = nil
			return
		}
		w.accept = make(map[affect.EventType]bool, len(types))
		for _, typ := range types {
			w.accept[typ] = true
		}
	}
}

// WithHTTPClient replaces the default client, which times out after five seconds.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(w *Webhook) {
		if c != nil {
			w.client = c
		}
	}
}

// Webhook posts each notification event as a JSON document to an endpoint.
// Its configuration is fixed at construction so deliveries never race with
// reconfiguration.
type Webhook struct {
	id       string
	endpoint string
	client   *http.Client
	header   http.Header
	accept   map[affect.EventType]bool
}

// NewWebhook builds a webhook notifier registered under id.
func NewWebhook(id, endpoint string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		id:       id,
		endpoint: endpoint,
		client:   &http.Client{Timeout: webhookTimeout},
		header:   make(http.Header),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Webhook) ID() string   { return w.id }
func (w *Webhook) Type() string { return "webhook" }
func (w *Webhook) Close() error { return nil }

// Accepts reports whether events of typ are delivered.
func (w *Webhook) Accepts(typ affect.EventType) bool {
	return w.accept == nil || w.accept[typ]
}

// Notify posts event unless its type is filtered out.
func (w *Webhook) Notify(ctx context.Context, event affect.NotificationEvent) error {
	if !w.Accepts(event.Event.Type) {
		return nil
	}
	body, err := event.JSON()
	if err != nil {
		return errors.Wrapf(err, "webhook %s: encode event %s", w.id, event.Event.ID)
	}
	req, err := w.newRequest(ctx, event, body)
	if err != nil {
		return err
	}
	return w.deliver(req)
}

func (w *Webhook) newRequest(ctx context.Context, event affect.NotificationEvent, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "webhook %s", w.id)
	}
	for key, values := range w.header {
		req.Header[key] = values
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, string(event.Event.Type))
	req.Header.Set(TargetHeader, string(event.TargetID))
	return req, nil
}

// deliver sends req and drains a bounded part of the reply so the connection
// can be reused.
func (w *Webhook) deliver(req *http.Request) error {
	resp, err := w.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "webhook %s: post", w.id)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, webhookMaxDrain))

	if resp.StatusCode/100 != 2 {
		return errors.WithStack(&StatusError{Endpoint: w.endpoint, Status: resp.StatusCode})
	}
	return nil
}
