// Package gateway holds the payment core: the order/transaction model
// shared with the surrounding order-management service, the adapter
// contract every payment gateway implements, the adapter registry, and
// the coordinator that dispatches payment operations to adapters.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/storecore/paygate/infra/opensearch"
)

// ErrInvalidGateway is returned when a gateway identifier has no
// registered adapter, or the adapter lacks the requested capability.
var ErrInvalidGateway = errors.New("invalid gateway")

// ErrOrderNotConfigured is returned when an order does not exist or
// carries no payment gateway assignment.
var ErrOrderNotConfigured = errors.New("order not found or payment method is missing")

// ValidationError reports a missing or malformed provider-mandated
// field, detected before any network or crypto call.
type ValidationError struct {
	Gateway string
	Field   string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: field '%s' %s", e.Gateway, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: required field '%s' is missing", e.Gateway, e.Field)
}

// Order is the slice of the order document the payment core reads and
// updates. The order store owns the full document; this core only ever
// writes the paid flag and the paid timestamp.
type Order struct {
	ID                   string     `json:"id"`
	Number               int        `json:"number"`
	GrandTotal           float64    `json:"grand_total"`
	Currency             string     `json:"currency,omitempty"`
	PaymentMethodID      string     `json:"payment_method_id,omitempty"`
	PaymentMethodGateway string     `json:"payment_method_gateway,omitempty"`
	Paid                 bool       `json:"paid"`
	DatePaid             *time.Time `json:"date_paid,omitempty"`
	PaymentToken         string     `json:"payment_token,omitempty"`
	Email                string     `json:"email,omitempty"`
}

// Transaction is an append-only record of a provider-confirmed payment
// event. The core never updates or reconciles transactions after insert.
type Transaction struct {
	TransactionID string  `json:"transaction_id"`
	OrderID       string  `json:"order_id,omitempty"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Status        string  `json:"status"`
	Details       string  `json:"details,omitempty"`
	Success       bool    `json:"success"`
}

// StoreSettings is the global storefront configuration the core reads.
type StoreSettings struct {
	CurrencyCode string `json:"currency_code" bson:"currency_code"`
}

// FormSettingsRequest carries the context an adapter needs to build the
// provider-specific checkout configuration.
type FormSettingsRequest struct {
	Order    *Order
	Amount   float64
	Currency string
}

// OrderStore is the order collaborator consumed by the payment core.
type OrderStore interface {
	GetOrder(ctx context.Context, id string) (*Order, error)
	MarkOrderPaid(ctx context.Context, id string, paidAt time.Time) error
}

// TransactionStore appends provider transaction records.
type TransactionStore interface {
	AddTransaction(ctx context.Context, orderID string, tx Transaction) error
}

// SettingsStore exposes the global storefront settings.
type SettingsStore interface {
	GetSettings(ctx context.Context) (*StoreSettings, error)
}

// GatewaySettingsStore loads the per-gateway credential bag. Settings
// are fetched on every dispatch and must not be cached across calls.
type GatewaySettingsStore interface {
	GetGatewaySettings(ctx context.Context, gateway string) (map[string]string, error)
}

// EventRecorder records payment-state events for auditing.
type EventRecorder interface {
	LogPaymentEvent(ctx context.Context, event opensearch.PaymentEvent) error
}

// Deps are the collaborators handed to every adapter at construction.
// Notification adapters mutate order and transaction state from their
// post-ack background task through these.
type Deps struct {
	Orders       OrderStore
	Transactions TransactionStore
	Events       EventRecorder
}

// PaymentGateway is the contract every payment adapter implements.
// Optional capabilities are expressed as extension interfaces; the
// coordinator type-asserts and turns an absent capability into
// ErrInvalidGateway rather than a runtime type error.
type PaymentGateway interface {
	// Initialize configures the adapter from the gateway's credential bag.
	Initialize(settings map[string]string) error

	// GetRequiredConfig returns the credential fields this adapter expects.
	GetRequiredConfig() []ConfigField

	// FormSettings builds the provider-specific checkout configuration.
	// It performs no I/O; mandatory-field validation happens first.
	FormSettings(ctx context.Context, req FormSettingsRequest) (any, error)
}

// NotificationGateway is implemented by adapters that accept
// asynchronous inbound payment confirmations. The handler acknowledges
// the provider before verification; a returned error means the request
// was rejected before any response was written.
type NotificationGateway interface {
	PaymentGateway
	PaymentNotification(w http.ResponseWriter, r *http.Request) error
}

// ChargeGateway is implemented by adapters that capture payment
// server-side. The boolean result reports the charge outcome; provider
// errors during the charge call are logged and reported as false.
type ChargeGateway interface {
	PaymentGateway
	ProcessPayment(ctx context.Context, order *Order, settings *StoreSettings) (bool, error)
}

// Factory builds a fresh adapter instance wired to the given collaborators.
type Factory func(deps Deps) PaymentGateway
