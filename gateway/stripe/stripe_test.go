package stripe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storecore/paygate/gateway"
)

type fakeOrderStore struct {
	mu        sync.Mutex
	paidCalls []string
}

func (f *fakeOrderStore) GetOrder(ctx context.Context, orderID string) (*gateway.Order, error) {
	return nil, nil
}

func (f *fakeOrderStore) MarkOrderPaid(ctx context.Context, orderID string, paidAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paidCalls = append(f.paidCalls, orderID)
	return nil
}

type fakeTransactionStore struct {
	mu           sync.Mutex
	transactions []gateway.Transaction
}

func (f *fakeTransactionStore) AddTransaction(ctx context.Context, orderID string, tx gateway.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactions = append(f.transactions, tx)
	return nil
}

func newTestGateway(t *testing.T) (*Gateway, *fakeOrderStore, *fakeTransactionStore) {
	t.Helper()

	orders := &fakeOrderStore{}
	transactions := &fakeTransactionStore{}

	g := NewGateway(gateway.Deps{Orders: orders, Transactions: transactions}).(*Gateway)
	require.NoError(t, g.Initialize(map[string]string{
		"public_key": "pk_test_123",
		"secret_key": "sk_test_123",
	}))

	return g, orders, transactions
}

func testOrder() *gateway.Order {
	return &gateway.Order{
		ID:           "order-1",
		Number:       1042,
		GrandTotal:   25.50,
		PaymentToken: "tok_visa",
		Email:        "jane@example.com",
	}
}

// chargeServer answers POST /v1/charges with the given status code and body
func chargeServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "2550", r.PostForm.Get("amount"))
		assert.Equal(t, "USD", r.PostForm.Get("currency"))
		assert.Equal(t, "tok_visa", r.PostForm.Get("source"))
		assert.Equal(t, "order-1", r.PostForm.Get("metadata[order_id]"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestFormSettings(t *testing.T) {
	g, _, _ := newTestGateway(t)

	form, err := g.FormSettings(context.Background(), gateway.FormSettingsRequest{
		Order:    testOrder(),
		Amount:   25.50,
		Currency: "",
	})
	require.NoError(t, err)

	checkout, ok := form.(*CheckoutForm)
	require.True(t, ok)
	assert.Equal(t, "order-1", checkout.OrderID)
	assert.Equal(t, 25.50, checkout.Amount)
	assert.Equal(t, "USD", checkout.Currency)
	assert.Equal(t, "jane@example.com", checkout.Email)
	assert.Equal(t, "pk_test_123", checkout.PublicKey)
}

func TestFormSettings_MissingOrder(t *testing.T) {
	g, _, _ := newTestGateway(t)

	_, err := g.FormSettings(context.Background(), gateway.FormSettingsRequest{})
	var vErr *gateway.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "order_id", vErr.Field)
}

func TestProcessPayment_Succeeded(t *testing.T) {
	g, orders, transactions := newTestGateway(t)
	srv := chargeServer(t, http.StatusOK, `{
		"id": "ch_1",
		"amount": 2550,
		"currency": "usd",
		"status": "succeeded",
		"paid": true,
		"outcome": {"seller_message": "Payment complete."}
	}`)
	g.apiURL = srv.URL

	ok, err := g.ProcessPayment(context.Background(), testOrder(), &gateway.StoreSettings{CurrencyCode: "USD"})
	require.NoError(t, err)
	assert.True(t, ok)

	require.Equal(t, []string{"order-1"}, orders.paidCalls)
	require.Len(t, transactions.transactions, 1)

	tx := transactions.transactions[0]
	assert.Equal(t, "ch_1", tx.TransactionID)
	assert.Equal(t, 25.50, tx.Amount)
	assert.Equal(t, "usd", tx.Currency)
	assert.Equal(t, "succeeded", tx.Status)
	assert.Equal(t, "Payment complete.", tx.Details)
	assert.True(t, tx.Success)
}

func TestProcessPayment_Declined(t *testing.T) {
	g, orders, transactions := newTestGateway(t)
	srv := chargeServer(t, http.StatusPaymentRequired, `{
		"error": {"type": "card_error", "code": "card_declined", "message": "Your card was declined."}
	}`)
	g.apiURL = srv.URL

	ok, err := g.ProcessPayment(context.Background(), testOrder(), &gateway.StoreSettings{CurrencyCode: "USD"})
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Empty(t, orders.paidCalls)
	assert.Empty(t, transactions.transactions)
}

func TestProcessPayment_NotSucceeded(t *testing.T) {
	g, orders, transactions := newTestGateway(t)
	srv := chargeServer(t, http.StatusOK, `{
		"id": "ch_2",
		"amount": 2550,
		"currency": "usd",
		"status": "pending",
		"paid": false
	}`)
	g.apiURL = srv.URL

	ok, err := g.ProcessPayment(context.Background(), testOrder(), &gateway.StoreSettings{CurrencyCode: "USD"})
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Empty(t, orders.paidCalls)
	require.Len(t, transactions.transactions, 1)
	assert.False(t, transactions.transactions[0].Success)
}
