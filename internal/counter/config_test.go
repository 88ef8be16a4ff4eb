package counter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Equal(t, 0, cfg.DB)
	assert.Equal(t, 64, cfg.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, 5*time.Second, cfg.CallTimeout)
	assert.Equal(t, 60*time.Second, cfg.IdempotencyTTL)
	assert.Equal(t, 2*time.Second, cfg.RateWindow)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("FLASHGATE_REDIS_ADDR", "counter.internal:6380")
	t.Setenv("FLASHGATE_IDEMPOTENCY_TTL", "5m")

	cfg := LoadConfig()

	assert.Equal(t, "counter.internal:6380", cfg.Addr)
	assert.Equal(t, 5*time.Minute, cfg.IdempotencyTTL)
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := LoadConfig()
		require.NoError(t, cfg.Validate())
	})

	t.Run("empty address", func(t *testing.T) {
		cfg := LoadConfig()
		cfg.Addr = "   "

		assert.ErrorIs(t, cfg.Validate(), ErrAddrEmpty)
	})

	t.Run("rate window clamped to cover two buckets", func(t *testing.T) {
		cfg := LoadConfig()
		cfg.RateWindow = 500 * time.Millisecond

		require.NoError(t, cfg.Validate())
		assert.Equal(t, 2*time.Second, cfg.RateWindow)
	})
}

func TestStockKey(t *testing.T) {
	assert.Equal(t, "product:widget-1:stock", StockKey("widget-1"))
}
