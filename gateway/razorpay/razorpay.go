// Package razorpay implements the Razorpay checkout adapter. The
// adapter only serves the hosted-checkout configuration; capture and
// settlement happen entirely on Razorpay's side.
package razorpay

import (
	"context"

	"github.com/storecore/paygate/gateway"
)

const gatewayName = "razorpay-checkout"

// Gateway implements the Razorpay checkout adapter
type Gateway struct {
	keyID     string
	keySecret string
}

// NewGateway creates a new Razorpay checkout adapter
func NewGateway(_ gateway.Deps) gateway.PaymentGateway {
	return &Gateway{}
}

// GetRequiredConfig returns the credential fields Razorpay expects
func (g *Gateway) GetRequiredConfig() []gateway.ConfigField {
	return []gateway.ConfigField{
		{Key: "key_id", Required: true, Type: "string", Description: "Razorpay key ID"},
		{Key: "key_secret", Required: true, Type: "string", Description: "Razorpay key secret"},
	}
}

// Initialize configures the adapter from the gateway's credential bag
func (g *Gateway) Initialize(settings map[string]string) error {
	if err := gateway.ValidateConfigFields(gatewayName, settings, g.GetRequiredConfig()); err != nil {
		return err
	}

	g.keyID = settings["key_id"]
	g.keySecret = settings["key_secret"]

	return nil
}

// CheckoutForm is the hosted-checkout configuration returned to the storefront
type CheckoutForm struct {
	OrderID   string  `json:"order_id"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	KeyID     string  `json:"key_id"`
	KeySecret string  `json:"key_secret"`
}

// FormSettings builds the hosted-checkout configuration
func (g *Gateway) FormSettings(_ context.Context, req gateway.FormSettingsRequest) (any, error) {
	if req.Order == nil || req.Order.ID == "" {
		return nil, &gateway.ValidationError{Gateway: gatewayName, Field: "order_id"}
	}
	if req.Amount <= 0 {
		return nil, &gateway.ValidationError{Gateway: gatewayName, Field: "amount"}
	}
	if req.Currency == "" {
		return nil, &gateway.ValidationError{Gateway: gatewayName, Field: "currency"}
	}
	if g.keyID == "" || g.keySecret == "" {
		return nil, &gateway.ValidationError{Gateway: gatewayName, Field: "key_id"}
	}

	return &CheckoutForm{
		OrderID:   req.Order.ID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		KeyID:     g.keyID,
		KeySecret: g.keySecret,
	}, nil
}
