package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *GatewayStorage {
	t.Helper()

	storage, err := NewGatewayStorage(filepath.Join(t.TempDir(), "gateways.db"))
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	return storage
}

func TestGatewayStorage_SaveAndGet(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	settings := map[string]string{
		"public_key":  "pk_test",
		"private_key": "sk_test",
		"language":    "en",
	}

	err := storage.SaveGatewaySettings(ctx, "liqpay", settings)
	require.NoError(t, err)

	loaded, err := storage.GetGatewaySettings(ctx, "liqpay")
	require.NoError(t, err)
	assert.Equal(t, settings, loaded)
}

func TestGatewayStorage_Get_NotFound(t *testing.T) {
	storage := newTestStorage(t)

	_, err := storage.GetGatewaySettings(context.Background(), "missing")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no settings found")
}

func TestGatewayStorage_Save_Overwrites(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.SaveGatewaySettings(ctx, "stripe-elements", map[string]string{"secret_key": "old"}))
	require.NoError(t, storage.SaveGatewaySettings(ctx, "stripe-elements", map[string]string{"secret_key": "new"}))

	loaded, err := storage.GetGatewaySettings(ctx, "stripe-elements")
	require.NoError(t, err)
	assert.Equal(t, "new", loaded["secret_key"])
}

func TestGatewayStorage_ListGateways(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.SaveGatewaySettings(ctx, "liqpay", map[string]string{"public_key": "a"}))
	require.NoError(t, storage.SaveGatewaySettings(ctx, "paypal-checkout", map[string]string{"client": "b"}))

	gateways, err := storage.ListGateways(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"liqpay", "paypal-checkout"}, gateways)
}

func TestGatewayStorage_Delete(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.SaveGatewaySettings(ctx, "razorpay-checkout", map[string]string{"key_id": "k"}))
	require.NoError(t, storage.DeleteGatewaySettings(ctx, "razorpay-checkout"))

	_, err := storage.GetGatewaySettings(ctx, "razorpay-checkout")
	assert.Error(t, err)
}

func TestGatewayStorage_Delete_NotFound(t *testing.T) {
	storage := newTestStorage(t)

	err := storage.DeleteGatewaySettings(context.Background(), "missing")
	assert.Error(t, err)
}

func TestGatewayStorage_SeedFromEnv(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	t.Setenv("LIQPAY_PUBLIC_KEY", "pk_env")
	t.Setenv("LIQPAY_PRIVATE_KEY", "sk_env")

	err := storage.SeedFromEnv(ctx, map[string][]string{
		"liqpay": {"public_key", "private_key"},
	})
	require.NoError(t, err)

	loaded, err := storage.GetGatewaySettings(ctx, "liqpay")
	require.NoError(t, err)
	assert.Equal(t, "pk_env", loaded["public_key"])
	assert.Equal(t, "sk_env", loaded["private_key"])
}

func TestGatewayStorage_SeedFromEnv_DoesNotOverwrite(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.SaveGatewaySettings(ctx, "liqpay", map[string]string{"public_key": "pk_saved"}))
	t.Setenv("LIQPAY_PUBLIC_KEY", "pk_env")

	err := storage.SeedFromEnv(ctx, map[string][]string{
		"liqpay": {"public_key"},
	})
	require.NoError(t, err)

	loaded, err := storage.GetGatewaySettings(ctx, "liqpay")
	require.NoError(t, err)
	assert.Equal(t, "pk_saved", loaded["public_key"])
}
