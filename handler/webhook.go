package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/storecore/paygate/infra/response"
	"github.com/storecore/paygate/store"
	"github.com/storecore/paygate/webhook"
)

// WebhookStore persists webhook registrations
type WebhookStore interface {
	ListWebhooks(ctx context.Context) ([]webhook.Webhook, error)
	GetWebhook(ctx context.Context, id string) (*webhook.Webhook, error)
	CreateWebhook(ctx context.Context, hook webhook.Webhook) (*webhook.Webhook, error)
	UpdateWebhook(ctx context.Context, id string, hook webhook.Webhook) (*webhook.Webhook, error)
	DeleteWebhook(ctx context.Context, id string) error
}

// Triggerer dispatches an event to all matching webhooks
type Triggerer interface {
	Trigger(ctx context.Context, event string, payload any)
}

// WebhookHandler serves the webhook registration endpoints
type WebhookHandler struct {
	store     WebhookStore
	triggerer Triggerer
	validate  *validator.Validate
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(store WebhookStore, triggerer Triggerer) *WebhookHandler {
	v := validator.New()
	_ = v.RegisterValidation("webhook_event", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		for _, event := range webhook.Events() {
			if event == name {
				return true
			}
		}
		return false
	})

	return &WebhookHandler{
		store:     store,
		triggerer: triggerer,
		validate:  v,
	}
}

type webhookRequest struct {
	URL     string   `json:"url" validate:"required,url"`
	Secret  string   `json:"secret"`
	Enabled bool     `json:"enabled"`
	Events  []string `json:"events" validate:"min=1,dive,webhook_event"`
}

func (h *WebhookHandler) decodeRequest(r *http.Request) (*webhookRequest, error) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	if err := h.validate.Struct(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// ListWebhooks returns all registered webhooks
// GET /v1/webhooks
func (h *WebhookHandler) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	hooks, err := h.store.ListWebhooks(r.Context())
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to list webhooks", err)
		return
	}
	if hooks == nil {
		hooks = []webhook.Webhook{}
	}
	response.Success(w, http.StatusOK, "Webhooks", hooks)
}

// GetWebhook returns a single webhook
// GET /v1/webhooks/{webhookID}
func (h *WebhookHandler) GetWebhook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "webhookID")

	hook, err := h.store.GetWebhook(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "Webhook not found", err)
			return
		}
		response.Error(w, http.StatusInternalServerError, "Failed to load webhook", err)
		return
	}
	response.Success(w, http.StatusOK, "Webhook", hook)
}

// CreateWebhook registers a new webhook
// POST /v1/webhooks
func (h *WebhookHandler) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeRequest(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid webhook", err)
		return
	}

	hook, err := h.store.CreateWebhook(r.Context(), webhook.Webhook{
		URL:     req.URL,
		Secret:  req.Secret,
		Enabled: req.Enabled,
		Events:  req.Events,
	})
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to create webhook", err)
		return
	}
	response.Success(w, http.StatusCreated, "Webhook created", hook)
}

// UpdateWebhook replaces a webhook registration
// PUT /v1/webhooks/{webhookID}
func (h *WebhookHandler) UpdateWebhook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "webhookID")

	req, err := h.decodeRequest(r)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid webhook", err)
		return
	}

	hook, err := h.store.UpdateWebhook(r.Context(), id, webhook.Webhook{
		URL:     req.URL,
		Secret:  req.Secret,
		Enabled: req.Enabled,
		Events:  req.Events,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "Webhook not found", err)
			return
		}
		response.Error(w, http.StatusInternalServerError, "Failed to update webhook", err)
		return
	}
	response.Success(w, http.StatusOK, "Webhook updated", hook)
}

// DeleteWebhook removes a webhook registration
// DELETE /v1/webhooks/{webhookID}
func (h *WebhookHandler) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "webhookID")

	if err := h.store.DeleteWebhook(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "Webhook not found", err)
			return
		}
		response.Error(w, http.StatusInternalServerError, "Failed to delete webhook", err)
		return
	}
	response.Success(w, http.StatusOK, "Webhook deleted", nil)
}

type triggerRequest struct {
	Event   string          `json:"event" validate:"required,webhook_event"`
	Payload json.RawMessage `json:"payload"`
}

// TriggerWebhooks dispatches a caller-supplied event to all matching
// webhooks, for verifying endpoint wiring.
// POST /v1/webhooks/trigger
func (h *WebhookHandler) TriggerWebhooks(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid trigger request", err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid trigger request", err)
		return
	}

	h.triggerer.Trigger(r.Context(), req.Event, req.Payload)
	response.Success(w, http.StatusOK, "Webhooks triggered", map[string]string{"event": req.Event})
}
