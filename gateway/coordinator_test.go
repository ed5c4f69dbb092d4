package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingOrders struct {
	mu        sync.Mutex
	order     *Order
	err       error
	getCalls  int
	paidCalls int
}

func (f *recordingOrders) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	return f.order, f.err
}

func (f *recordingOrders) MarkOrderPaid(ctx context.Context, orderID string, paidAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paidCalls++
	return nil
}

type recordingTransactions struct {
	mu    sync.Mutex
	calls int
}

func (f *recordingTransactions) AddTransaction(ctx context.Context, orderID string, tx Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

type recordingSettings struct {
	mu    sync.Mutex
	calls int
}

func (f *recordingSettings) GetSettings(ctx context.Context) (*StoreSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return &StoreSettings{CurrencyCode: "USD"}, nil
}

type recordingGatewaySettings struct {
	mu       sync.Mutex
	settings map[string]string
	calls    int
}

func (f *recordingGatewaySettings) GetGatewaySettings(ctx context.Context, gateway string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.settings == nil {
		return map[string]string{}, nil
	}
	return f.settings, nil
}

// formOnlyGateway implements only the base capability
type formOnlyGateway struct {
	formCalls int
}

func (g *formOnlyGateway) Initialize(settings map[string]string) error    { return nil }
func (g *formOnlyGateway) GetRequiredConfig() []ConfigField              { return nil }
func (g *formOnlyGateway) FormSettings(ctx context.Context, req FormSettingsRequest) (any, error) {
	g.formCalls++
	return map[string]string{"order_id": req.Order.ID, "currency": req.Currency}, nil
}

type chargingGateway struct {
	formOnlyGateway
	chargeCalls int
	result      bool
}

func (g *chargingGateway) ProcessPayment(ctx context.Context, order *Order, settings *StoreSettings) (bool, error) {
	g.chargeCalls++
	return g.result, nil
}

type coordinatorFixture struct {
	coordinator     *Coordinator
	orders          *recordingOrders
	transactions    *recordingTransactions
	settings        *recordingSettings
	gatewaySettings *recordingGatewaySettings
}

func newFixture(registry *Registry, order *Order) *coordinatorFixture {
	f := &coordinatorFixture{
		orders:          &recordingOrders{order: order},
		transactions:    &recordingTransactions{},
		settings:        &recordingSettings{},
		gatewaySettings: &recordingGatewaySettings{},
	}
	f.coordinator = NewCoordinator(CoordinatorConfig{
		Registry:        registry,
		Orders:          f.orders,
		Transactions:    f.transactions,
		Settings:        f.settings,
		GatewaySettings: f.gatewaySettings,
	})
	return f
}

func TestGetFormSettings(t *testing.T) {
	registry := NewRegistry()
	adapter := &formOnlyGateway{}
	registry.Register("test-gw", func(deps Deps) PaymentGateway { return adapter })

	t.Run("happy path", func(t *testing.T) {
		order := &Order{ID: "order-1", GrandTotal: 10, PaymentMethodGateway: "test-gw"}
		f := newFixture(registry, order)

		settings, err := f.coordinator.GetFormSettings(context.Background(), "order-1")
		require.NoError(t, err)

		form, ok := settings.(map[string]string)
		require.True(t, ok)
		assert.Equal(t, "order-1", form["order_id"])
		assert.Equal(t, "USD", form["currency"])
	})

	t.Run("order without gateway", func(t *testing.T) {
		order := &Order{ID: "order-1"}
		f := newFixture(registry, order)
		before := adapter.formCalls

		_, err := f.coordinator.GetFormSettings(context.Background(), "order-1")
		assert.ErrorIs(t, err, ErrOrderNotConfigured)
		assert.Equal(t, before, adapter.formCalls)
		assert.Zero(t, f.gatewaySettings.calls)
	})

	t.Run("missing order", func(t *testing.T) {
		f := newFixture(registry, nil)

		_, err := f.coordinator.GetFormSettings(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrOrderNotConfigured)
	})

	t.Run("unregistered gateway", func(t *testing.T) {
		order := &Order{ID: "order-1", PaymentMethodGateway: "ghost"}
		f := newFixture(registry, order)

		_, err := f.coordinator.GetFormSettings(context.Background(), "order-1")
		assert.ErrorIs(t, err, ErrInvalidGateway)
	})
}

// Settings are loaded fresh for every operation, never cached.
func TestCreateGateway_LoadsSettingsEachTime(t *testing.T) {
	registry := NewRegistry()
	registry.Register("test-gw", func(deps Deps) PaymentGateway { return &formOnlyGateway{} })

	order := &Order{ID: "order-1", PaymentMethodGateway: "test-gw"}
	f := newFixture(registry, order)

	for i := 0; i < 3; i++ {
		_, err := f.coordinator.GetFormSettings(context.Background(), "order-1")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, f.gatewaySettings.calls)
}

func TestHandleNotification_CapabilityCheckedBeforeResponse(t *testing.T) {
	registry := NewRegistry()
	registry.Register("form-only", func(deps Deps) PaymentGateway { return &formOnlyGateway{} })

	f := newFixture(registry, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/notifications/form-only", nil)
	rec := httptest.NewRecorder()

	err := f.coordinator.HandleNotification(rec, req, "form-only")
	require.ErrorIs(t, err, ErrInvalidGateway)

	// nothing written, the caller still owns the response
	assert.Empty(t, rec.Body.String())
	assert.Empty(t, rec.Header())
}

func TestProcessOrderPayment(t *testing.T) {
	registry := NewRegistry()
	adapter := &chargingGateway{result: true}
	registry.Register("charge-gw", func(deps Deps) PaymentGateway { return adapter })

	t.Run("nil order", func(t *testing.T) {
		f := newFixture(registry, nil)

		_, err := f.coordinator.ProcessOrderPayment(context.Background(), nil)
		assert.ErrorIs(t, err, ErrOrderNotConfigured)
	})

	t.Run("already paid short-circuits", func(t *testing.T) {
		order := &Order{ID: "order-1", Paid: true, PaymentMethodGateway: "charge-gw"}
		f := newFixture(registry, order)
		before := adapter.chargeCalls

		paid, err := f.coordinator.ProcessOrderPayment(context.Background(), order)
		require.NoError(t, err)
		assert.True(t, paid)

		assert.Equal(t, before, adapter.chargeCalls)
		assert.Zero(t, f.settings.calls)
		assert.Zero(t, f.gatewaySettings.calls)
	})

	t.Run("no gateway configured", func(t *testing.T) {
		order := &Order{ID: "order-1"}
		f := newFixture(registry, order)

		_, err := f.coordinator.ProcessOrderPayment(context.Background(), order)
		assert.ErrorIs(t, err, ErrOrderNotConfigured)
	})

	t.Run("charges unpaid order", func(t *testing.T) {
		order := &Order{ID: "order-1", PaymentMethodGateway: "charge-gw"}
		f := newFixture(registry, order)
		before := adapter.chargeCalls

		paid, err := f.coordinator.ProcessOrderPayment(context.Background(), order)
		require.NoError(t, err)
		assert.True(t, paid)
		assert.Equal(t, before+1, adapter.chargeCalls)
	})

	t.Run("gateway without charge capability", func(t *testing.T) {
		formRegistry := NewRegistry()
		formRegistry.Register("form-only", func(deps Deps) PaymentGateway { return &formOnlyGateway{} })

		order := &Order{ID: "order-1", PaymentMethodGateway: "form-only"}
		f := newFixture(formRegistry, order)

		_, err := f.coordinator.ProcessOrderPayment(context.Background(), order)
		assert.ErrorIs(t, err, ErrInvalidGateway)
	})
}
