// Package stripe implements the Stripe Elements adapter: the storefront
// tokenizes the card client-side and the server creates the charge.
package stripe

import (
	"context"
	"fmt"
	"math"
	"time"

	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/storecore/paygate/gateway"
	"github.com/storecore/paygate/infra/logger"
	"github.com/storecore/paygate/infra/opensearch"
)

const gatewayName = "stripe-elements"

// Gateway implements the Stripe Elements adapter
type Gateway struct {
	publicKey string
	secretKey string

	// apiURL overrides the Stripe API endpoint in tests
	apiURL string

	orders       gateway.OrderStore
	transactions gateway.TransactionStore
	events       gateway.EventRecorder
}

// NewGateway creates a new Stripe Elements adapter
func NewGateway(deps gateway.Deps) gateway.PaymentGateway {
	return &Gateway{
		orders:       deps.Orders,
		transactions: deps.Transactions,
		events:       deps.Events,
	}
}

// GetRequiredConfig returns the credential fields Stripe expects
func (g *Gateway) GetRequiredConfig() []gateway.ConfigField {
	return []gateway.ConfigField{
		{Key: "public_key", Required: true, Type: "string", Description: "Stripe publishable key"},
		{Key: "secret_key", Required: true, Type: "string", Description: "Stripe secret key"},
	}
}

// Initialize configures the adapter from the gateway's credential bag
func (g *Gateway) Initialize(settings map[string]string) error {
	if err := gateway.ValidateConfigFields(gatewayName, settings, g.GetRequiredConfig()); err != nil {
		return err
	}

	g.publicKey = settings["public_key"]
	g.secretKey = settings["secret_key"]

	return nil
}

// CheckoutForm is the Elements configuration returned to the storefront
type CheckoutForm struct {
	OrderID   string  `json:"order_id"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Email     string  `json:"email"`
	PublicKey string  `json:"public_key"`
}

// FormSettings builds the Elements configuration
func (g *Gateway) FormSettings(_ context.Context, req gateway.FormSettingsRequest) (any, error) {
	if req.Order == nil || req.Order.ID == "" {
		return nil, &gateway.ValidationError{Gateway: gatewayName, Field: "order_id"}
	}
	if g.publicKey == "" {
		return nil, &gateway.ValidationError{Gateway: gatewayName, Field: "public_key"}
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	return &CheckoutForm{
		OrderID:   req.Order.ID,
		Amount:    req.Amount,
		Currency:  currency,
		Email:     req.Order.Email,
		PublicKey: g.publicKey,
	}, nil
}

// apiClient builds a Stripe client bound to the configured secret key
func (g *Gateway) apiClient() *client.API {
	sc := &client.API{}
	if g.apiURL != "" {
		backend := stripeapi.GetBackendWithConfig(stripeapi.APIBackend, &stripeapi.BackendConfig{
			URL: stripeapi.String(g.apiURL),
		})
		sc.Init(g.secretKey, &stripeapi.Backends{API: backend, Connect: backend, Uploads: backend})
		return sc
	}
	sc.Init(g.secretKey, nil)
	return sc
}

// ProcessPayment charges the order's card token. A declined or failed
// charge attempt is not an error to the caller; the outcome travels in
// the recorded transaction and the returned flag.
func (g *Gateway) ProcessPayment(ctx context.Context, order *gateway.Order, storeSettings *gateway.StoreSettings) (bool, error) {
	amount := int64(math.Round(order.GrandTotal * 100))
	description := fmt.Sprintf("Order #%d", order.Number)

	params := &stripeapi.ChargeParams{
		Params:              stripeapi.Params{Context: ctx},
		Amount:              stripeapi.Int64(amount),
		Currency:            stripeapi.String(storeSettings.CurrencyCode),
		Description:         stripeapi.String(description),
		StatementDescriptor: stripeapi.String(description),
	}
	if err := params.SetSource(order.PaymentToken); err != nil {
		return false, fmt.Errorf("stripe: invalid payment token: %w", err)
	}
	params.AddMetadata("order_id", order.ID)

	logCtx := logger.LogContext{
		Gateway: gatewayName,
		OrderID: order.ID,
		Fields:  map[string]any{"amount": amount, "currency": storeSettings.CurrencyCode},
	}

	ch, err := g.apiClient().Charges.New(params)
	if err != nil {
		logger.Error("Charge request failed", err, logCtx)
		return false, nil
	}

	succeeded := ch.Status == stripeapi.ChargeStatusSucceeded || ch.Paid

	if succeeded {
		if err := g.orders.MarkOrderPaid(ctx, order.ID, time.Now().UTC()); err != nil {
			logger.Error("Failed to mark order paid", err, logCtx)
			return false, err
		}
	}

	details := ""
	if ch.Outcome != nil {
		details = ch.Outcome.SellerMessage
	}
	tx := gateway.Transaction{
		TransactionID: ch.ID,
		Amount:        float64(ch.Amount) / 100,
		Currency:      string(ch.Currency),
		Status:        string(ch.Status),
		Details:       details,
		Success:       succeeded,
	}
	if err := g.transactions.AddTransaction(ctx, order.ID, tx); err != nil {
		logger.Error("Failed to record transaction", err, logCtx)
		return succeeded, err
	}

	logger.Info("Charge processed", logger.LogContext{
		Gateway: gatewayName,
		OrderID: order.ID,
		Fields:  map[string]any{"transaction_id": ch.ID, "status": string(ch.Status)},
	})

	if g.events != nil {
		_ = g.events.LogPaymentEvent(ctx, opensearch.PaymentEvent{
			Event:         "charge.processed",
			Gateway:       gatewayName,
			OrderID:       order.ID,
			TransactionID: ch.ID,
			Amount:        tx.Amount,
			Currency:      tx.Currency,
			Success:       succeeded,
		})
	}

	return succeeded, nil
}
