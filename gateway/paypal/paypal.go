// Package paypal implements the PayPal checkout adapter: a client-side
// button configuration plus IPN (Instant Payment Notification) handling
// verified by echoing the message back to PayPal.
package paypal

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/storecore/paygate/gateway"
	"github.com/storecore/paygate/infra/logger"
	"github.com/storecore/paygate/infra/opensearch"
)

const (
	gatewayName = "paypal-checkout"

	liveVerifyURL    = "https://www.paypal.com/cgi-bin/webscr"
	sandboxVerifyURL = "https://www.sandbox.paypal.com/cgi-bin/webscr"

	statusCompleted = "Completed"
	verifiedBody    = "VERIFIED"
)

// Gateway implements the PayPal checkout adapter
type Gateway struct {
	clientID     string
	env          string
	size         string
	shape        string
	color        string
	notifyURL    string
	allowSandbox bool

	// overridable in tests
	liveURL    string
	sandboxURL string

	httpClient   *gateway.HTTPClient
	orders       gateway.OrderStore
	transactions gateway.TransactionStore
	events       gateway.EventRecorder
}

// NewGateway creates a new PayPal checkout adapter
func NewGateway(deps gateway.Deps) gateway.PaymentGateway {
	return &Gateway{
		liveURL:      liveVerifyURL,
		sandboxURL:   sandboxVerifyURL,
		httpClient:   gateway.NewHTTPClient(nil),
		orders:       deps.Orders,
		transactions: deps.Transactions,
		events:       deps.Events,
	}
}

// GetRequiredConfig returns the credential fields PayPal expects
func (g *Gateway) GetRequiredConfig() []gateway.ConfigField {
	return []gateway.ConfigField{
		{Key: "client_id", Required: true, Type: "string", Description: "PayPal REST client ID"},
		{Key: "env", Required: false, Type: "string", Description: "Checkout environment, sandbox or production"},
		{Key: "size", Required: false, Type: "string", Description: "Button size"},
		{Key: "shape", Required: false, Type: "string", Description: "Button shape"},
		{Key: "color", Required: false, Type: "string", Description: "Button color"},
		{Key: "notify_url", Required: false, Type: "url", Description: "IPN callback URL"},
		{Key: "allow_sandbox", Required: false, Type: "boolean", Description: "Permit IPN verification against the sandbox endpoint"},
	}
}

// Initialize configures the adapter from the gateway's credential bag
func (g *Gateway) Initialize(settings map[string]string) error {
	if err := gateway.ValidateConfigFields(gatewayName, settings, g.GetRequiredConfig()); err != nil {
		return err
	}

	g.clientID = settings["client_id"]
	g.env = settings["env"]
	if g.env == "" {
		g.env = "production"
	}
	g.size = settings["size"]
	g.shape = settings["shape"]
	g.color = settings["color"]
	g.notifyURL = settings["notify_url"]
	g.allowSandbox = settings["allow_sandbox"] == "true"

	return nil
}

// CheckoutForm is the button configuration returned to the storefront
type CheckoutForm struct {
	OrderID   string  `json:"order_id"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Env       string  `json:"env"`
	Client    string  `json:"client"`
	Size      string  `json:"size"`
	Shape     string  `json:"shape"`
	Color     string  `json:"color"`
	NotifyURL string  `json:"notify_url"`
}

// FormSettings builds the checkout button configuration
func (g *Gateway) FormSettings(_ context.Context, req gateway.FormSettingsRequest) (any, error) {
	if req.Order == nil || req.Order.ID == "" {
		return nil, &gateway.ValidationError{Gateway: gatewayName, Field: "order_id"}
	}

	return &CheckoutForm{
		OrderID:   req.Order.ID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Env:       g.env,
		Client:    g.clientID,
		Size:      g.size,
		Shape:     g.shape,
		Color:     g.color,
		NotifyURL: g.notifyURL,
	}, nil
}

// PaymentNotification acknowledges the IPN message and verifies it in a
// detached background task. PayPal retries messages that are not
// answered promptly, so the response is written before the echo-back
// round trip.
func (g *Gateway) PaymentNotification(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("paypal: invalid notification body: %w", err)
	}

	params := make(map[string]string, len(r.PostForm))
	for key := range r.PostForm {
		params[key] = r.PostForm.Get(key)
	}

	w.WriteHeader(http.StatusOK)

	go g.verifyAndRecord(context.Background(), params)

	return nil
}

// verifyURL picks the echo-back endpoint for the message. Sandbox
// messages are only honored when the gateway settings permit them.
func (g *Gateway) verifyURL(params map[string]string) (string, bool) {
	if params["test_ipn"] == "1" {
		if !g.allowSandbox {
			return "", false
		}
		return g.sandboxURL, true
	}
	return g.liveURL, true
}

// verifyAndRecord echoes the IPN message back to PayPal with
// cmd=_notify-validate and applies it only on a literal VERIFIED reply
// with a Completed payment status. Rejections are logged only.
func (g *Gateway) verifyAndRecord(ctx context.Context, params map[string]string) {
	orderID := params["custom"]

	logCtx := logger.LogContext{
		Gateway: gatewayName,
		OrderID: orderID,
		Fields: map[string]any{
			"txn_id":         params["txn_id"],
			"payment_status": params["payment_status"],
		},
	}

	endpoint, ok := g.verifyURL(params)
	if !ok {
		logger.Warn("Sandbox IPN message rejected", logCtx)
		return
	}

	echo := make(map[string]string, len(params)+1)
	for key, value := range params {
		echo[key] = value
	}
	echo["cmd"] = "_notify-validate"

	resp, err := g.httpClient.SendForm(ctx, &gateway.HTTPRequest{
		Method:   http.MethodPost,
		URL:      endpoint,
		FormData: echo,
	})
	if err != nil {
		logger.Error("IPN verification request failed", err, logCtx)
		return
	}

	if resp.RawBody != verifiedBody {
		logger.Warn("IPN message failed verification", logCtx)
		return
	}

	if params["payment_status"] != statusCompleted {
		logger.Info("Verified IPN message ignored, payment not completed", logCtx)
		return
	}

	if err := g.orders.MarkOrderPaid(ctx, orderID, time.Now().UTC()); err != nil {
		logger.Error("Failed to mark order paid", err, logCtx)
		return
	}

	amount, _ := strconv.ParseFloat(params["mc_gross"], 64)
	tx := gateway.Transaction{
		TransactionID: params["txn_id"],
		Amount:        amount,
		Currency:      params["mc_currency"],
		Status:        params["payment_status"],
		Details:       fmt.Sprintf("%s %s, %s", params["first_name"], params["last_name"], params["payer_email"]),
		Success:       true,
	}
	if err := g.transactions.AddTransaction(ctx, orderID, tx); err != nil {
		logger.Error("Failed to record transaction", err, logCtx)
		return
	}

	logger.Info("IPN payment recorded", logCtx)

	if g.events != nil {
		_ = g.events.LogPaymentEvent(ctx, opensearch.PaymentEvent{
			Event:         "notification.verified",
			Gateway:       gatewayName,
			OrderID:       orderID,
			TransactionID: tx.TransactionID,
			Amount:        tx.Amount,
			Currency:      tx.Currency,
			Success:       true,
		})
	}
}
