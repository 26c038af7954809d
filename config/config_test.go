package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("CLICKHOUSE_HOST", "localhost")
	t.Setenv("CLICKHOUSE_NATIVE_PORT", "9000")
	for _, key := range []string{"PORT", "CLICKHOUSE_DB_PREFIX", "REQUEST_TIMEOUT", "RECONNECT_DELAY", "BOOKING_CONVERSION_DOMAINS"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "carat_161108_", cfg.DatabasePrefix)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, []string{"nissan"}, cfg.BookingConversionDomains)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("CLICKHOUSE_HOST", "ch.internal")
	t.Setenv("CLICKHOUSE_NATIVE_PORT", "9440")
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("RECONNECT_DELAY", "500ms")
	t.Setenv("BOOKING_CONVERSION_DOMAINS", " nissan, toyota ,,")
	t.Setenv("CLICKHOUSE_DB_SUFFIX", "_prod")

	cfg := FromEnv()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9440, cfg.ClickHousePort)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.ReconnectDelay)
	assert.Equal(t, []string{"nissan", "toyota"}, cfg.BookingConversionDomains)
	assert.Equal(t, "_prod", cfg.DatabaseSuffix)
}

func TestValidate(t *testing.T) {
	t.Setenv("CLICKHOUSE_HOST", "")
	t.Setenv("CLICKHOUSE_NATIVE_PORT", "")
	assert.Error(t, FromEnv().Validate())

	t.Setenv("CLICKHOUSE_HOST", "localhost")
	t.Setenv("CLICKHOUSE_NATIVE_PORT", "9000")
	t.Setenv("REQUEST_TIMEOUT", "-1s")
	assert.ErrorContains(t, FromEnv().Validate(), "REQUEST_TIMEOUT")
}
