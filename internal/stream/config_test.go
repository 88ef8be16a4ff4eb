package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.Equal(t, "orders", cfg.OrdersTopic)
	assert.Equal(t, "orders.dlq", cfg.DLQTopic)
	assert.Equal(t, "inventory-group", cfg.ConsumerGroup)
	assert.Equal(t, 10*time.Second, cfg.ProduceTimeout)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("FLASHGATE_KAFKA_BROKERS", "broker-a:9092, broker-b:9092")
	t.Setenv("FLASHGATE_ORDERS_TOPIC", "sale-orders")
	t.Setenv("FLASHGATE_DLQ_TOPIC", "sale-orders.dlq")

	cfg := LoadConfig()

	assert.Equal(t, []string{"broker-a:9092", "broker-b:9092"}, cfg.Brokers)
	assert.Equal(t, "sale-orders", cfg.OrdersTopic)
	assert.Equal(t, "sale-orders.dlq", cfg.DLQTopic)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Brokers:       []string{"localhost:9092"},
			OrdersTopic:   "orders",
			ConsumerGroup: "inventory-group",
		}
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	t.Run("no brokers", func(t *testing.T) {
		cfg := valid()
		cfg.Brokers = nil

		assert.ErrorIs(t, cfg.Validate(), ErrNoBrokers)
	})

	t.Run("empty topic", func(t *testing.T) {
		cfg := valid()
		cfg.OrdersTopic = ""

		assert.ErrorIs(t, cfg.Validate(), ErrTopicEmpty)
	})

	t.Run("empty consumer group", func(t *testing.T) {
		cfg := valid()
		cfg.ConsumerGroup = ""

		assert.ErrorIs(t, cfg.Validate(), ErrGroupEmpty)
	})
}
