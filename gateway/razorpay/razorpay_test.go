package razorpay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storecore/paygate/gateway"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()

	g := NewGateway(gateway.Deps{}).(*Gateway)
	require.NoError(t, g.Initialize(map[string]string{
		"key_id":     "rzp_test_key",
		"key_secret": "rzp_test_secret",
	}))
	return g
}

func TestInitialize_MissingCredentials(t *testing.T) {
	g := NewGateway(gateway.Deps{}).(*Gateway)

	err := g.Initialize(map[string]string{"key_id": "rzp_test_key"})
	var vErr *gateway.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "key_secret", vErr.Field)
}

func TestFormSettings(t *testing.T) {
	g := newTestGateway(t)

	form, err := g.FormSettings(context.Background(), gateway.FormSettingsRequest{
		Order:    &gateway.Order{ID: "order-1"},
		Amount:   1200,
		Currency: "INR",
	})
	require.NoError(t, err)

	checkout, ok := form.(*CheckoutForm)
	require.True(t, ok)
	assert.Equal(t, "order-1", checkout.OrderID)
	assert.Equal(t, float64(1200), checkout.Amount)
	assert.Equal(t, "INR", checkout.Currency)
	assert.Equal(t, "rzp_test_key", checkout.KeyID)
	assert.Equal(t, "rzp_test_secret", checkout.KeySecret)
}

func TestFormSettings_Validation(t *testing.T) {
	g := newTestGateway(t)
	order := &gateway.Order{ID: "order-1"}

	tests := []struct {
		name  string
		req   gateway.FormSettingsRequest
		field string
	}{
		{"missing order", gateway.FormSettingsRequest{Amount: 10, Currency: "INR"}, "order_id"},
		{"zero amount", gateway.FormSettingsRequest{Order: order, Currency: "INR"}, "amount"},
		{"missing currency", gateway.FormSettingsRequest{Order: order, Amount: 10}, "currency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.FormSettings(context.Background(), tt.req)

			var vErr *gateway.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}
