package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// PaymentEvent represents a payment-state event recorded for auditing:
// a verified notification, a server-side charge outcome, or a webhook
// delivery attempt.
type PaymentEvent struct {
	Timestamp     time.Time      `json:"timestamp"`
	EventID       string         `json:"event_id"`
	Event         string         `json:"event"`
	Gateway       string         `json:"gateway,omitempty"`
	OrderID       string         `json:"order_id,omitempty"`
	TransactionID string         `json:"transaction_id,omitempty"`
	Amount        float64        `json:"amount,omitempty"`
	Currency      string         `json:"currency,omitempty"`
	Success       bool           `json:"success"`
	Message       string         `json:"message,omitempty"`
	Fields        map[string]any `json:"fields,omitempty"`
}

// Logger handles OpenSearch logging operations
type Logger struct {
	client *Client
}

// NewLogger creates a new OpenSearch logger
func NewLogger(client *Client) *Logger {
	return &Logger{
		client: client,
	}
}

// LogPaymentEvent records a payment event to the event index.
func (l *Logger) LogPaymentEvent(ctx context.Context, event PaymentEvent) error {
	if !l.client.IsEnabled() {
		return nil // Logging disabled
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}

	return l.index(ctx, eventLogIndex, event)
}

// LogSystemEvent logs a structured system log entry to OpenSearch.
func (l *Logger) LogSystemEvent(ctx context.Context, entry any) error {
	if !l.client.IsEnabled() {
		return nil // Logging disabled
	}

	return l.index(ctx, systemLogIndex, entry)
}

// index marshals a document and writes it to the named index.
func (l *Logger) index(ctx context.Context, indexName string, doc any) error {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal log document: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index: indexName,
		Body:  bytes.NewReader(docJSON),
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return fmt.Errorf("failed to index log document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch error: %s", res.String())
	}

	return nil
}
