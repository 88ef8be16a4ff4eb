package worker

import (
	"time"

	"github.com/flashgate-io/flashgate/internal/config"
)

const (
	defaultDivergenceRetries = 5
	defaultRetryBackoff      = time.Second
)

// Config holds the fulfillment loop tunables.
type Config struct {
	// DivergenceRetries bounds how many times a diverging message (durable
	// stock exhausted while the counter said yes) is retried before it is
	// dead-lettered. Zero or negative means retry forever.
	DivergenceRetries int

	// RetryBackoff is the pause between retries of a failing message.
	RetryBackoff time.Duration
}

// LoadConfig loads worker configuration from environment variables with
// fallback to defaults.
func LoadConfig() *Config {
	return &Config{
		DivergenceRetries: config.GetEnvInt("FLASHGATE_DIVERGENCE_RETRIES", defaultDivergenceRetries),
		RetryBackoff:      config.GetEnvDuration("FLASHGATE_RETRY_BACKOFF", defaultRetryBackoff),
	}
}
