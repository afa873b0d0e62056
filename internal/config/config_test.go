package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "EVENTS_BACKEND", "PAYMENT_CURRENCY", "PAYMENT_TIMEOUT", "IDEMPOTENCY_TTL"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, "usd", c.Payment.Currency)
	assert.Equal(t, 10*time.Second, c.Payment.Timeout)
	assert.Equal(t, BackendNone, c.Events.Backend)
	assert.Equal(t, 24*time.Hour, c.Idempotency.TTL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("PAYMENT_TIMEOUT", "3s")
	t.Setenv("EVENTS_BACKEND", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("FRONTEND_URL", "https://shop.example")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", c.HTTPAddr)
	assert.Equal(t, 3*time.Second, c.Payment.Timeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Events.KafkaBrokers)
	assert.Equal(t, "https://shop.example", c.Payment.FrontendURL)
}

func TestValidate(t *testing.T) {
	base := Config{Payment: Payment{Currency: "usd", Timeout: time.Second}, Events: Events{Backend: BackendNone}}
	require.NoError(t, base.Validate())

	c := base
	c.Events.Backend = "rabbit"
	assert.Error(t, c.Validate())

	c = base
	c.Events.Backend = BackendKafka
	assert.Error(t, c.Validate())

	c = base
	c.Payment.Timeout = 0
	assert.Error(t, c.Validate())
}
