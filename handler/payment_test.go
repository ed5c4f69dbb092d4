package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storecore/paygate/gateway"
	"github.com/storecore/paygate/store"
)

type fakeCoordinator struct {
	formSettings    any
	formErr         error
	notificationErr error
	charged         bool
	chargeErr       error
}

func (f *fakeCoordinator) GetFormSettings(ctx context.Context, orderID string) (any, error) {
	return f.formSettings, f.formErr
}

func (f *fakeCoordinator) HandleNotification(w http.ResponseWriter, r *http.Request, gatewayID string) error {
	if f.notificationErr != nil {
		return f.notificationErr
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (f *fakeCoordinator) ProcessOrderPayment(ctx context.Context, order *gateway.Order) (bool, error) {
	return f.charged, f.chargeErr
}

type fakeOrders struct {
	order *gateway.Order
	err   error
}

func (f *fakeOrders) GetOrder(ctx context.Context, orderID string) (*gateway.Order, error) {
	return f.order, f.err
}

func (f *fakeOrders) MarkOrderPaid(ctx context.Context, orderID string, paidAt time.Time) error {
	return nil
}

func paymentRouter(coordinator PaymentCoordinator, orders gateway.OrderStore) *chi.Mux {
	h := NewPaymentHandler(coordinator, orders)

	r := chi.NewRouter()
	r.Get("/v1/orders/{orderID}/payment_form_settings", h.GetPaymentFormSettings)
	r.Post("/v1/orders/{orderID}/charge", h.ChargeOrder)
	r.Post("/v1/notifications/{gateway}", h.PaymentNotification)
	return r
}

func TestGetPaymentFormSettings(t *testing.T) {
	tests := []struct {
		name       string
		coord      *fakeCoordinator
		wantStatus int
	}{
		{"ok", &fakeCoordinator{formSettings: map[string]string{"key": "value"}}, http.StatusOK},
		{"order not configured", &fakeCoordinator{formErr: gateway.ErrOrderNotConfigured}, http.StatusNotFound},
		{"order missing", &fakeCoordinator{formErr: fmt.Errorf("%w: order x", store.ErrNotFound)}, http.StatusNotFound},
		{"unknown gateway", &fakeCoordinator{formErr: fmt.Errorf("%w: 'x' is not registered", gateway.ErrInvalidGateway)}, http.StatusBadRequest},
		{"internal error", &fakeCoordinator{formErr: assert.AnError}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := paymentRouter(tt.coord, &fakeOrders{})

			req := httptest.NewRequest(http.MethodGet, "/v1/orders/order-1/payment_form_settings", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestPaymentNotification(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		router := paymentRouter(&fakeCoordinator{}, &fakeOrders{})

		req := httptest.NewRequest(http.MethodPost, "/v1/notifications/liqpay", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejected", func(t *testing.T) {
		router := paymentRouter(&fakeCoordinator{notificationErr: gateway.ErrInvalidGateway}, &fakeOrders{})

		req := httptest.NewRequest(http.MethodPost, "/v1/notifications/unknown", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestChargeOrder(t *testing.T) {
	t.Run("charged", func(t *testing.T) {
		orders := &fakeOrders{order: &gateway.Order{ID: "order-1"}}
		router := paymentRouter(&fakeCoordinator{charged: true}, orders)

		req := httptest.NewRequest(http.MethodPost, "/v1/orders/order-1/charge", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Data struct {
				Charged bool `json:"charged"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Data.Charged)
	})

	t.Run("order missing", func(t *testing.T) {
		orders := &fakeOrders{err: fmt.Errorf("%w: order x", store.ErrNotFound)}
		router := paymentRouter(&fakeCoordinator{}, orders)

		req := httptest.NewRequest(http.MethodPost, "/v1/orders/missing/charge", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("no charge capability", func(t *testing.T) {
		orders := &fakeOrders{order: &gateway.Order{ID: "order-1"}}
		router := paymentRouter(&fakeCoordinator{chargeErr: gateway.ErrInvalidGateway}, orders)

		req := httptest.NewRequest(http.MethodPost, "/v1/orders/order-1/charge", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
