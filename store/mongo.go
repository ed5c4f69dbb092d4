// Package store persists orders, transactions, store settings and
// webhook registrations in MongoDB.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/storecore/paygate/gateway"
	"github.com/storecore/paygate/webhook"
)

// ErrNotFound is returned when a requested document does not exist
var ErrNotFound = errors.New("store: not found")

// Dispatcher receives change events emitted by write operations
type Dispatcher interface {
	Trigger(ctx context.Context, event string, payload any)
}

// Connect opens a MongoDB client and verifies the connection
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("store: failed to connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("store: failed to ping: %w", err)
	}
	return client, nil
}

// Store wraps the database handles used by the payment service
type Store struct {
	orders       *mongo.Collection
	transactions *mongo.Collection
	settings     *mongo.Collection
	webhooks     *mongo.Collection

	dispatcher Dispatcher
}

// New creates a Store over the given database
func New(db *mongo.Database) *Store {
	return &Store{
		orders:       db.Collection("orders"),
		transactions: db.Collection("transactions"),
		settings:     db.Collection("settings"),
		webhooks:     db.Collection("webhooks"),
	}
}

// SetDispatcher wires the change-event dispatcher. The dispatcher lists
// webhooks through this same store, so it is attached after construction.
func (s *Store) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

func (s *Store) emit(event string, payload any) {
	if s.dispatcher == nil {
		return
	}
	// Deliveries outlive the triggering request.
	go s.dispatcher.Trigger(context.Background(), event, payload)
}

// orderDoc is the persisted shape of an order
type orderDoc struct {
	ID                   primitive.ObjectID `bson:"_id"`
	Number               int                `bson:"number"`
	GrandTotal           float64            `bson:"grand_total"`
	Currency             string             `bson:"currency"`
	PaymentMethodID      string             `bson:"payment_method_id,omitempty"`
	PaymentMethodGateway string             `bson:"payment_method_gateway,omitempty"`
	Paid                 bool               `bson:"paid"`
	DatePaid             *time.Time         `bson:"date_paid,omitempty"`
	PaymentToken         string             `bson:"payment_token,omitempty"`
	Email                string             `bson:"email,omitempty"`
}

func (d *orderDoc) toOrder() *gateway.Order {
	return &gateway.Order{
		ID:                   d.ID.Hex(),
		Number:               d.Number,
		GrandTotal:           d.GrandTotal,
		Currency:             d.Currency,
		PaymentMethodID:      d.PaymentMethodID,
		PaymentMethodGateway: d.PaymentMethodGateway,
		Paid:                 d.Paid,
		DatePaid:             d.DatePaid,
		PaymentToken:         d.PaymentToken,
		Email:                d.Email,
	}
}

// GetOrder loads a single order by its hex ID
func (s *Store) GetOrder(ctx context.Context, orderID string) (*gateway.Order, error) {
	oid, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid order id %q", ErrNotFound, orderID)
	}

	var doc orderDoc
	err = s.orders.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: failed to load order %s: %w", orderID, err)
	}
	return doc.toOrder(), nil
}

// MarkOrderPaid sets the order's paid flag and payment date, then emits
// an order.updated event with the refreshed order.
func (s *Store) MarkOrderPaid(ctx context.Context, orderID string, paidAt time.Time) error {
	oid, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return fmt.Errorf("%w: invalid order id %q", ErrNotFound, orderID)
	}

	update := bson.M{"$set": bson.M{"paid": true, "date_paid": paidAt}}
	result, err := s.orders.UpdateByID(ctx, oid, update)
	if err != nil {
		return fmt.Errorf("store: failed to mark order %s paid: %w", orderID, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}

	if order, err := s.GetOrder(ctx, orderID); err == nil {
		s.emit(webhook.OrderUpdated, order)
	}
	return nil
}

// transactionDoc is the persisted shape of a payment transaction
type transactionDoc struct {
	ID            primitive.ObjectID `bson:"_id"`
	OrderID       string             `bson:"order_id"`
	TransactionID string             `bson:"transaction_id"`
	Amount        float64            `bson:"amount"`
	Currency      string             `bson:"currency"`
	Status        string             `bson:"status"`
	Details       string             `bson:"details,omitempty"`
	Success       bool               `bson:"success"`
	CreatedAt     time.Time          `bson:"created_at"`
}

// AddTransaction appends a transaction record for the order and emits a
// transaction.created event. Records are append-only; a repeated
// provider notification produces a second record.
func (s *Store) AddTransaction(ctx context.Context, orderID string, tx gateway.Transaction) error {
	doc := transactionDoc{
		ID:            primitive.NewObjectID(),
		OrderID:       orderID,
		TransactionID: tx.TransactionID,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		Status:        tx.Status,
		Details:       tx.Details,
		Success:       tx.Success,
		CreatedAt:     time.Now().UTC(),
	}
	if _, err := s.transactions.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("store: failed to record transaction for order %s: %w", orderID, err)
	}

	tx.OrderID = orderID
	s.emit(webhook.TransactionCreated, tx)
	return nil
}

// GetSettings loads the store settings, falling back to USD when no
// settings document exists.
func (s *Store) GetSettings(ctx context.Context) (*gateway.StoreSettings, error) {
	var settings gateway.StoreSettings
	err := s.settings.FindOne(ctx, bson.M{}).Decode(&settings)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &gateway.StoreSettings{CurrencyCode: "USD"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: failed to load settings: %w", err)
	}
	if settings.CurrencyCode == "" {
		settings.CurrencyCode = "USD"
	}
	return &settings, nil
}

// ListWebhooks returns every registered webhook
func (s *Store) ListWebhooks(ctx context.Context) ([]webhook.Webhook, error) {
	cursor, err := s.webhooks.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("store: failed to list webhooks: %w", err)
	}
	defer cursor.Close(ctx)

	var hooks []webhook.Webhook
	if err := cursor.All(ctx, &hooks); err != nil {
		return nil, fmt.Errorf("store: failed to decode webhooks: %w", err)
	}
	return hooks, nil
}

// GetWebhook loads a single webhook by ID
func (s *Store) GetWebhook(ctx context.Context, id string) (*webhook.Webhook, error) {
	var hook webhook.Webhook
	err := s.webhooks.FindOne(ctx, bson.M{"_id": id}).Decode(&hook)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: webhook %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: failed to load webhook %s: %w", id, err)
	}
	return &hook, nil
}

// CreateWebhook registers a new webhook and assigns it an ID
func (s *Store) CreateWebhook(ctx context.Context, hook webhook.Webhook) (*webhook.Webhook, error) {
	hook.ID = uuid.New().String()
	if _, err := s.webhooks.InsertOne(ctx, hook); err != nil {
		return nil, fmt.Errorf("store: failed to create webhook: %w", err)
	}
	return &hook, nil
}

// UpdateWebhook replaces an existing webhook registration
func (s *Store) UpdateWebhook(ctx context.Context, id string, hook webhook.Webhook) (*webhook.Webhook, error) {
	hook.ID = id
	result, err := s.webhooks.ReplaceOne(ctx, bson.M{"_id": id}, hook)
	if err != nil {
		return nil, fmt.Errorf("store: failed to update webhook %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return nil, fmt.Errorf("%w: webhook %s", ErrNotFound, id)
	}
	return &hook, nil
}

// DeleteWebhook removes a webhook registration
func (s *Store) DeleteWebhook(ctx context.Context, id string) error {
	result, err := s.webhooks.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("store: failed to delete webhook %s: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: webhook %s", ErrNotFound, id)
	}
	return nil
}
