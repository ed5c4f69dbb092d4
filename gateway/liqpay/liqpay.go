// Package liqpay implements the LiqPay adapter: redirect-form checkout
// signed with the merchant's private key, and a server-to-server
// payment notification carrying a base64 payload plus signature.
package liqpay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/storecore/paygate/gateway"
	"github.com/storecore/paygate/infra/logger"
	"github.com/storecore/paygate/infra/opensearch"
	"github.com/storecore/paygate/infra/sign"
)

const (
	gatewayName = "liqpay"

	// LiqPay protocol constants
	apiVersion    = "3"
	actionPay     = "pay"
	statusSuccess = "success"
)

// Gateway implements the LiqPay payment adapter
type Gateway struct {
	publicKey  string
	privateKey string
	language   string
	serverURL  string

	orders       gateway.OrderStore
	transactions gateway.TransactionStore
	events       gateway.EventRecorder
}

// NewGateway creates a new LiqPay adapter
func NewGateway(deps gateway.Deps) gateway.PaymentGateway {
	return &Gateway{
		orders:       deps.Orders,
		transactions: deps.Transactions,
		events:       deps.Events,
	}
}

// GetRequiredConfig returns the credential fields LiqPay expects
func (g *Gateway) GetRequiredConfig() []gateway.ConfigField {
	return []gateway.ConfigField{
		{Key: "public_key", Required: true, Type: "string", Description: "LiqPay merchant public key"},
		{Key: "private_key", Required: true, Type: "string", Description: "LiqPay merchant private key used for signing"},
		{Key: "language", Required: false, Type: "string", Description: "Checkout form language"},
		{Key: "server_url", Required: false, Type: "url", Description: "Notification callback URL"},
	}
}

// Initialize configures the adapter from the gateway's credential bag
func (g *Gateway) Initialize(settings map[string]string) error {
	if err := gateway.ValidateConfigFields(gatewayName, settings, g.GetRequiredConfig()); err != nil {
		return err
	}

	g.publicKey = settings["public_key"]
	g.privateKey = settings["private_key"]
	g.language = settings["language"]
	g.serverURL = settings["server_url"]

	return nil
}

// formParams is the payload LiqPay expects inside the signed data blob
type formParams struct {
	Sandbox     string  `json:"sandbox"`
	Action      string  `json:"action"`
	Version     string  `json:"version"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
	OrderID     string  `json:"order_id"`
	PublicKey   string  `json:"public_key"`
	Language    string  `json:"language,omitempty"`
	ServerURL   string  `json:"server_url,omitempty"`
}

// CheckoutForm is the redirect-form configuration returned to the storefront
type CheckoutForm struct {
	Data      string `json:"data"`
	Signature string `json:"signature"`
	Language  string `json:"language,omitempty"`
}

// FormSettings builds the signed redirect-form payload
func (g *Gateway) FormSettings(_ context.Context, req gateway.FormSettingsRequest) (any, error) {
	if req.Order == nil || req.Order.ID == "" {
		return nil, &gateway.ValidationError{Gateway: gatewayName, Field: "order_id"}
	}

	params := formParams{
		Sandbox:     "0",
		Action:      actionPay,
		Version:     apiVersion,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: fmt.Sprintf("Order: %d", req.Order.Number),
		OrderID:     req.Order.ID,
		PublicKey:   g.publicKey,
		Language:    g.language,
		ServerURL:   g.serverURL,
	}

	if err := validateFormParams(params); err != nil {
		return nil, err
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("liqpay: failed to marshal form params: %w", err)
	}

	data := base64.StdEncoding.EncodeToString(paramsJSON)

	return &CheckoutForm{
		Data:      data,
		Signature: sign.SaltedSHA1(g.privateKey, data),
		Language:  g.language,
	}, nil
}

// validateFormParams rejects any form missing a provider-mandated field
func validateFormParams(params formParams) error {
	if params.Version == "" {
		return &gateway.ValidationError{Gateway: gatewayName, Field: "version"}
	}
	if params.Amount <= 0 {
		return &gateway.ValidationError{Gateway: gatewayName, Field: "amount"}
	}
	if params.Currency == "" {
		return &gateway.ValidationError{Gateway: gatewayName, Field: "currency"}
	}
	if params.Description == "" {
		return &gateway.ValidationError{Gateway: gatewayName, Field: "description"}
	}
	return nil
}

// notificationBody is the wire form of a LiqPay server-to-server callback
type notificationBody struct {
	Data      string `json:"data"`
	Signature string `json:"signature"`
}

// notificationPayload is the decoded content of the data blob
type notificationPayload struct {
	OrderID        string  `json:"order_id"`
	Status         string  `json:"status"`
	TransactionID  string  `json:"transaction_id"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	PayType        string  `json:"paytype"`
	SenderCardMask string  `json:"sender_card_mask2"`
}

// PaymentNotification acknowledges the provider and verifies the
// notification in a detached background task. LiqPay enforces a short
// ack deadline and retries unanswered callbacks, so the response is
// written before any signature check.
func (g *Gateway) PaymentNotification(w http.ResponseWriter, r *http.Request) error {
	var body notificationBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return fmt.Errorf("liqpay: invalid notification body: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(body.Data)
	if err != nil {
		return fmt.Errorf("liqpay: invalid notification data encoding: %w", err)
	}

	var payload notificationPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("liqpay: invalid notification payload: %w", err)
	}

	w.WriteHeader(http.StatusOK)

	// The background task outlives the request; the provider never
	// sees its outcome.
	go g.verifyAndRecord(context.Background(), body, payload)

	return nil
}

// verifyAndRecord checks the notification signature and status, then
// marks the order paid and appends the transaction. Rejections are
// logged only; no state changes.
func (g *Gateway) verifyAndRecord(ctx context.Context, body notificationBody, payload notificationPayload) {
	signatureValid := sign.VerifySaltedSHA1(g.privateKey, body.Data, body.Signature)
	paymentSuccess := payload.Status == statusSuccess

	logCtx := logger.LogContext{
		Gateway: gatewayName,
		OrderID: payload.OrderID,
		Fields: map[string]any{
			"signature_valid": signatureValid,
			"status":          payload.Status,
		},
	}

	if !signatureValid || !paymentSuccess {
		logger.Warn("Payment notification rejected", logCtx)
		return
	}

	if err := g.orders.MarkOrderPaid(ctx, payload.OrderID, time.Now().UTC()); err != nil {
		logger.Error("Failed to mark order paid", err, logCtx)
		return
	}

	tx := gateway.Transaction{
		TransactionID: payload.TransactionID,
		Amount:        payload.Amount,
		Currency:      payload.Currency,
		Status:        payload.Status,
		Details:       fmt.Sprintf("%s, %s", payload.PayType, payload.SenderCardMask),
		Success:       true,
	}
	if err := g.transactions.AddTransaction(ctx, payload.OrderID, tx); err != nil {
		logger.Error("Failed to record transaction", err, logCtx)
		return
	}

	logger.Info("Payment notification accepted", logCtx)

	if g.events != nil {
		_ = g.events.LogPaymentEvent(ctx, opensearch.PaymentEvent{
			Event:         "notification.verified",
			Gateway:       gatewayName,
			OrderID:       payload.OrderID,
			TransactionID: payload.TransactionID,
			Amount:        payload.Amount,
			Currency:      payload.Currency,
			Success:       true,
		})
	}
}
