// Package handler exposes the payment and webhook HTTP endpoints.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/storecore/paygate/gateway"
	"github.com/storecore/paygate/infra/logger"
	"github.com/storecore/paygate/infra/response"
	"github.com/storecore/paygate/store"
)

// PaymentCoordinator drives payment operations for the handlers
type PaymentCoordinator interface {
	GetFormSettings(ctx context.Context, orderID string) (any, error)
	HandleNotification(w http.ResponseWriter, r *http.Request, gatewayID string) error
	ProcessOrderPayment(ctx context.Context, order *gateway.Order) (bool, error)
}

// PaymentHandler serves the payment endpoints
type PaymentHandler struct {
	coordinator PaymentCoordinator
	orders      gateway.OrderStore
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(coordinator PaymentCoordinator, orders gateway.OrderStore) *PaymentHandler {
	return &PaymentHandler{coordinator: coordinator, orders: orders}
}

// GetPaymentFormSettings returns the checkout form configuration for an order
// GET /v1/orders/{orderID}/payment_form_settings
func (h *PaymentHandler) GetPaymentFormSettings(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	settings, err := h.coordinator.GetFormSettings(r.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrOrderNotConfigured), errors.Is(err, store.ErrNotFound):
			response.Error(w, http.StatusNotFound, "Order not found or has no payment method", err)
		case errors.Is(err, gateway.ErrInvalidGateway):
			response.Error(w, http.StatusBadRequest, "Unsupported payment gateway", err)
		default:
			response.Error(w, http.StatusInternalServerError, "Failed to build payment form settings", err)
		}
		return
	}

	response.Success(w, http.StatusOK, "Payment form settings", settings)
}

// PaymentNotification receives a provider's server-to-server callback
// POST /v1/notifications/{gateway}
func (h *PaymentHandler) PaymentNotification(w http.ResponseWriter, r *http.Request) {
	gatewayID := chi.URLParam(r, "gateway")

	if err := h.coordinator.HandleNotification(w, r, gatewayID); err != nil {
		logger.Warn("Payment notification rejected", logger.LogContext{
			Gateway: gatewayID,
			Fields:  map[string]any{"error": err.Error()},
		})
		response.Error(w, http.StatusBadRequest, "Invalid payment notification", err)
	}
}

// ChargeOrder charges an order through its server-side gateway
// POST /v1/orders/{orderID}/charge
func (h *PaymentHandler) ChargeOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	order, err := h.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "Order not found", err)
			return
		}
		response.Error(w, http.StatusInternalServerError, "Failed to load order", err)
		return
	}

	charged, err := h.coordinator.ProcessOrderPayment(r.Context(), order)
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrOrderNotConfigured):
			response.Error(w, http.StatusNotFound, "Order has no payment method", err)
		case errors.Is(err, gateway.ErrInvalidGateway):
			response.Error(w, http.StatusBadRequest, "Gateway does not support server-side charges", err)
		default:
			response.Error(w, http.StatusInternalServerError, "Charge failed", err)
		}
		return
	}

	response.Success(w, http.StatusOK, "Charge processed", map[string]any{
		"order_id": orderID,
		"charged":  charged,
	})
}
