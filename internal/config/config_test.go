package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequired sets the env vars without defaults so Load can succeed.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("PAYMENT_CALLBACK_SECRET", "test-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "localhost", cfg.PostgresHost)
	assert.Equal(t, "checkout_db", cfg.PostgresDB)
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, 30, cfg.SessionTTLMins)
	assert.Equal(t, 15, cfg.ReservationTTLMins)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
}

func TestLoad_MissingCallbackSecret(t *testing.T) {
	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAYMENT_CALLBACK_SECRET")
}

func TestLoad_InvalidHTTPPort(t *testing.T) {
	setRequired(t)
	t.Setenv("HTTP_PORT", "99999")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid HTTP port")
}

func TestLoad_InvalidCurrency(t *testing.T) {
	setRequired(t)
	t.Setenv("CHECKOUT_CURRENCY", "DOLLARS")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3-letter code")
}

func TestLoad_InvalidSessionTTL(t *testing.T) {
	setRequired(t)
	t.Setenv("CHECKOUT_SESSION_TTL_MINUTES", "0")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TTLs must be positive")
}

func TestLoad_InvalidOTELSampleRate(t *testing.T) {
	setRequired(t)
	t.Setenv("OTEL_SAMPLE_RATE", "2.0")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OTEL_SAMPLE_RATE must be between")
}

func TestLoad_InvalidShippingURL(t *testing.T) {
	setRequired(t)
	t.Setenv("SHIPPING_RATE_URL", "::not-a-url")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHIPPING_RATE_URL")
}

func TestLoad_KafkaBrokerList(t *testing.T) {
	setRequired(t)
	t.Setenv("KAFKA_BROKERS", "broker-1:9092,broker-2:9092")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
}
