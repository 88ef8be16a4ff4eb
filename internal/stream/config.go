package stream

import (
	"errors"
	"time"

	"github.com/flashgate-io/flashgate/internal/config"
)

const (
	defaultBrokers       = "localhost:9092"
	defaultOrdersTopic   = "orders"
	defaultDLQTopic      = "orders.dlq"
	defaultConsumerGroup = "inventory-group"
	defaultProduceTimout = 10 * time.Second
	defaultMinBytes      = 1
	defaultMaxBytes      = 10 * 1024 * 1024 // 10 MB
)

var (
	// ErrNoBrokers is returned when no broker addresses are configured.
	ErrNoBrokers = errors.New("at least one broker address is required")

	// ErrTopicEmpty is returned when the orders topic name is empty.
	ErrTopicEmpty = errors.New("orders topic cannot be empty")

	// ErrGroupEmpty is returned when the consumer group id is empty.
	ErrGroupEmpty = errors.New("consumer group id cannot be empty")
)

// Config holds durable-log configuration shared by the producer and the
// consumer.
type Config struct {
	Brokers        []string
	OrdersTopic    string
	DLQTopic       string // empty disables dead-lettering
	ConsumerGroup  string
	ProduceTimeout time.Duration // Deadline for an acked produce, including retries
	MinBytes       int
	MaxBytes       int
}

// LoadConfig loads durable-log configuration from environment variables
// with fallback to defaults.
func LoadConfig() *Config {
	return &Config{
		Brokers:        config.ParseCommaSeparatedList(config.GetEnvStr("FLASHGATE_KAFKA_BROKERS", defaultBrokers)),
		OrdersTopic:    config.GetEnvStr("FLASHGATE_ORDERS_TOPIC", defaultOrdersTopic),
		DLQTopic:       config.GetEnvStr("FLASHGATE_DLQ_TOPIC", defaultDLQTopic),
		ConsumerGroup:  config.GetEnvStr("FLASHGATE_CONSUMER_GROUP", defaultConsumerGroup),
		ProduceTimeout: config.GetEnvDuration("FLASHGATE_PRODUCE_TIMEOUT", defaultProduceTimout),
		MinBytes:       config.GetEnvInt("FLASHGATE_KAFKA_MIN_BYTES", defaultMinBytes),
		MaxBytes:       config.GetEnvInt("FLASHGATE_KAFKA_MAX_BYTES", defaultMaxBytes),
	}
}

// Validate checks if the durable-log configuration is valid.
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return ErrNoBrokers
	}

	if c.OrdersTopic == "" {
		return ErrTopicEmpty
	}

	if c.ConsumerGroup == "" {
		return ErrGroupEmpty
	}

	return nil
}
