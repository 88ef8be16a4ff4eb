package counter

import (
	"errors"
	"strings"
	"time"

	"github.com/flashgate-io/flashgate/internal/config"
)

const (
	defaultAddr           = "localhost:6379"
	defaultPoolSize       = 64
	defaultDialTimeout    = 5 * time.Second
	defaultCallTimeout    = 5 * time.Second
	defaultIdempotencyTTL = 60 * time.Second
	defaultRateWindow     = 2 * time.Second
)

// ErrAddrEmpty is returned when the counter-store address is an empty string.
var ErrAddrEmpty = errors.New("counter-store address cannot be empty")

// Config holds Redis connection configuration for the counter store.
type Config struct {
	Addr        string
	DB          int
	PoolSize    int           // Connection pool size shared by all request handlers
	DialTimeout time.Duration // Deadline for establishing new connections
	CallTimeout time.Duration // Per-call deadline applied to every round trip

	// IdempotencyTTL is the expiry attached to idempotency markers.
	IdempotencyTTL time.Duration

	// RateWindow is the expiry attached to per-second admission tallies.
	// Must cover at least two bucket widths so a tally outlives its bucket.
	RateWindow time.Duration
}

// LoadConfig loads counter-store configuration from environment variables
// with fallback to defaults.
func LoadConfig() *Config {
	return &Config{
		Addr:           config.GetEnvStr("FLASHGATE_REDIS_ADDR", defaultAddr),
		DB:             config.GetEnvInt("FLASHGATE_REDIS_DB", 0),
		PoolSize:       config.GetEnvInt("FLASHGATE_REDIS_POOL_SIZE", defaultPoolSize),
		DialTimeout:    config.GetEnvDuration("FLASHGATE_REDIS_DIAL_TIMEOUT", defaultDialTimeout),
		CallTimeout:    config.GetEnvDuration("FLASHGATE_COUNTER_TIMEOUT", defaultCallTimeout),
		IdempotencyTTL: config.GetEnvDuration("FLASHGATE_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
		RateWindow:     config.GetEnvDuration("FLASHGATE_RATE_WINDOW", defaultRateWindow),
	}
}

// Validate checks if the counter-store configuration is valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return ErrAddrEmpty
	}

	if c.RateWindow < defaultRateWindow {
		c.RateWindow = defaultRateWindow
	}

	return nil
}
