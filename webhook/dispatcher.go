// Package webhook delivers store events to registered external
// endpoints, each delivery signed with the endpoint's secret.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/storecore/paygate/infra/logger"
	"github.com/storecore/paygate/infra/sign"
)

// Webhook is a registered delivery endpoint
type Webhook struct {
	ID      string   `json:"id" bson:"_id"`
	URL     string   `json:"url" bson:"url"`
	Secret  string   `json:"secret" bson:"secret"`
	Enabled bool     `json:"enabled" bson:"enabled"`
	Events  []string `json:"events" bson:"events"`
}

// subscribed reports whether the webhook wants the event. A webhook
// with no subscriptions receives nothing.
func (w *Webhook) subscribed(event string) bool {
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

// Registry lists the delivery endpoints for dispatch
type Registry interface {
	ListWebhooks(ctx context.Context) ([]Webhook, error)
}

// Dispatcher fans a store event out to every matching webhook. A
// destination failure never fails the triggering operation and never
// stops delivery to the remaining destinations.
type Dispatcher struct {
	registry Registry
	client   *http.Client
}

// NewDispatcher creates a dispatcher over the given registry
func NewDispatcher(registry Registry) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		client: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Trigger delivers the event payload to each matching webhook in
// registry order, one destination at a time.
func (d *Dispatcher) Trigger(ctx context.Context, event string, payload any) {
	hooks, err := d.registry.ListWebhooks(ctx)
	if err != nil {
		logger.Error("Failed to list webhooks", err, logger.LogContext{
			Fields: map[string]any{"event": event},
		})
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to encode webhook payload", err, logger.LogContext{
			Fields: map[string]any{"event": event},
		})
		return
	}

	for i := range hooks {
		hook := &hooks[i]
		if !hook.Enabled || hook.URL == "" || !hook.subscribed(event) {
			continue
		}

		if err := d.deliver(ctx, hook, event, body); err != nil {
			logger.Warn("Webhook delivery failed", logger.LogContext{
				Fields: map[string]any{
					"event":      event,
					"webhook_id": hook.ID,
					"url":        hook.URL,
					"error":      err.Error(),
				},
			})
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, hook *Webhook, event string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hook-Event", event)
	req.Header.Set("X-Hook-Signature", sign.HMACSHA256Hex(hook.Secret, body))

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
