package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/storecore/paygate/infra/logger"
	"github.com/storecore/paygate/infra/opensearch"
)

// Coordinator dispatches payment operations to the adapter selected by
// the order's gateway identifier. It owns exactly one idempotency
// guard: an already-paid order short-circuits ProcessOrderPayment.
type Coordinator struct {
	registry        *Registry
	orders          OrderStore
	transactions    TransactionStore
	settings        SettingsStore
	gatewaySettings GatewaySettingsStore
	events          EventRecorder
}

// CoordinatorConfig carries the collaborators a Coordinator needs.
// Events may be nil when payment-event auditing is disabled.
type CoordinatorConfig struct {
	Registry        *Registry
	Orders          OrderStore
	Transactions    TransactionStore
	Settings        SettingsStore
	GatewaySettings GatewaySettingsStore
	Events          EventRecorder
}

// NewCoordinator creates a new payment coordinator
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	registry := cfg.Registry
	if registry == nil {
		registry = DefaultRegistry
	}

	return &Coordinator{
		registry:        registry,
		orders:          cfg.Orders,
		transactions:    cfg.Transactions,
		settings:        cfg.Settings,
		gatewaySettings: cfg.GatewaySettings,
		events:          cfg.Events,
	}
}

// createGateway builds and configures the adapter for a gateway id,
// loading its credential bag fresh from the settings store.
func (c *Coordinator) createGateway(ctx context.Context, gatewayID string) (PaymentGateway, error) {
	settings, err := c.gatewaySettings.GetGatewaySettings(ctx, gatewayID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings for gateway '%s': %w", gatewayID, err)
	}

	gw, err := c.registry.Create(gatewayID, Deps{
		Orders:       c.orders,
		Transactions: c.transactions,
		Events:       c.events,
	})
	if err != nil {
		return nil, err
	}

	if err := gw.Initialize(settings); err != nil {
		return nil, err
	}

	return gw, nil
}

// GetFormSettings loads the order and storefront settings, selects the
// matching adapter, and returns the provider-specific checkout
// configuration the storefront needs to initiate payment.
func (c *Coordinator) GetFormSettings(ctx context.Context, orderID string) (any, error) {
	var (
		order         *Order
		storeSettings *StoreSettings
		orderErr      error
		settingsErr   error
		wg            sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		order, orderErr = c.orders.GetOrder(ctx, orderID)
	}()
	go func() {
		defer wg.Done()
		storeSettings, settingsErr = c.settings.GetSettings(ctx)
	}()
	wg.Wait()

	if orderErr != nil || order == nil || order.PaymentMethodGateway == "" {
		return nil, ErrOrderNotConfigured
	}
	if settingsErr != nil {
		return nil, fmt.Errorf("failed to load store settings: %w", settingsErr)
	}

	gatewayID := order.PaymentMethodGateway
	gw, err := c.createGateway(ctx, gatewayID)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	formSettings, err := gw.FormSettings(ctx, FormSettingsRequest{
		Order:    order,
		Amount:   order.GrandTotal,
		Currency: storeSettings.CurrencyCode,
	})
	if err != nil {
		logger.Warn("Payment form settings rejected", logger.LogContext{
			Gateway: gatewayID,
			OrderID: orderID,
			Fields:  map[string]any{"error": err.Error()},
		})
		return nil, err
	}

	logger.Debug("Payment form settings built", logger.LogContext{
		Gateway: gatewayID,
		OrderID: orderID,
		Fields:  map[string]any{"elapsed_ms": time.Since(startTime).Milliseconds()},
	})

	return formSettings, nil
}

// HandleNotification dispatches an inbound payment confirmation to the
// adapter for the named gateway. An adapter without the notification
// capability fails here, before anything is written to the response;
// once the adapter takes over, it acknowledges first and verifies in a
// detached background task.
func (c *Coordinator) HandleNotification(w http.ResponseWriter, r *http.Request, gatewayID string) error {
	gw, err := c.createGateway(r.Context(), gatewayID)
	if err != nil {
		return err
	}

	ng, ok := gw.(NotificationGateway)
	if !ok {
		return fmt.Errorf("%w: '%s' does not accept payment notifications", ErrInvalidGateway, gatewayID)
	}

	if c.events != nil {
		_ = c.events.LogPaymentEvent(r.Context(), opensearch.PaymentEvent{
			Event:   "notification.received",
			Gateway: gatewayID,
			Success: true,
		})
	}

	return ng.PaymentNotification(w, r)
}

// ProcessOrderPayment captures payment for an order server-side. An
// order already marked paid returns true immediately, with no settings
// load and no adapter call.
func (c *Coordinator) ProcessOrderPayment(ctx context.Context, order *Order) (bool, error) {
	if order == nil {
		return false, ErrOrderNotConfigured
	}
	if order.Paid {
		return true, nil
	}
	if order.PaymentMethodGateway == "" {
		return false, ErrOrderNotConfigured
	}

	gatewayID := order.PaymentMethodGateway
	gw, err := c.createGateway(ctx, gatewayID)
	if err != nil {
		return false, err
	}

	cg, ok := gw.(ChargeGateway)
	if !ok {
		return false, fmt.Errorf("%w: '%s' does not support server-side charges", ErrInvalidGateway, gatewayID)
	}

	storeSettings, err := c.settings.GetSettings(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load store settings: %w", err)
	}

	startTime := time.Now()
	paid, err := cg.ProcessPayment(ctx, order, storeSettings)

	logCtx := logger.LogContext{
		Gateway: gatewayID,
		OrderID: order.ID,
		Fields: map[string]any{
			"paid":       paid,
			"elapsed_ms": time.Since(startTime).Milliseconds(),
		},
	}
	if err != nil {
		logger.Error("Order charge failed", err, logCtx)
	} else {
		logger.Info("Order charge processed", logCtx)
	}

	return paid, err
}
