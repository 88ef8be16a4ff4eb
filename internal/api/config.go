// Package api provides the HTTP ingestion surface for the flashgate gateway.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flashgate-io/flashgate/internal/config"
)

const (
	defaultPort           int    = 8080
	maxPort               int    = 65535
	defaultHost           string = "0.0.0.0"
	defaultTimeout               = 30 * time.Second
	defaultLogLevel              = slog.LevelInfo
	defaultMaxRequestSize int64  = 65536 // Order and init bodies are tiny
	defaultAdmissionCap   int64  = 100
	defaultWaitingRoom    string = "/waiting-room"
)

var (
	// ErrInvalidPort indicates the port number is outside valid range (1-65535).
	ErrInvalidPort = errors.New("invalid port")

	// ErrEmptyHost indicates the server host address is empty.
	ErrEmptyHost = errors.New("host cannot be empty")

	// ErrInvalidReadTimeout indicates the read timeout is zero or negative.
	ErrInvalidReadTimeout = errors.New("read timeout must be positive")

	// ErrInvalidWriteTimeout indicates the write timeout is zero or negative.
	ErrInvalidWriteTimeout = errors.New("write timeout must be positive")

	// ErrInvalidShutdownTimeout indicates the shutdown timeout is zero or negative.
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")

	// ErrInvalidMaxRequestSize indicates the max request size is zero or negative.
	ErrInvalidMaxRequestSize = errors.New("max request size must be positive")

	// ErrInvalidAdmissionCap indicates the admission cap is negative.
	ErrInvalidAdmissionCap = errors.New("admission cap cannot be negative")

	// ErrEmptyWaitingRoomURL indicates the waiting room redirect target is empty.
	ErrEmptyWaitingRoomURL = errors.New("waiting room URL cannot be empty")
)

// ServerConfig holds HTTP server configuration.
// Pure configuration only - no runtime dependencies.
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	LogLevel        slog.Level
	MaxRequestSize  int64

	// AdmissionCap is the per-second ceiling forwarded to the hot path.
	AdmissionCap int64

	// WaitingRoomURL is the Location target for throttled requests.
	WaitingRoomURL string
}

// LoadServerConfig loads server configuration from environment variables with sensible defaults.
func LoadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:            config.GetEnvInt("FLASHGATE_SERVER_PORT", defaultPort),
		Host:            config.GetEnvStr("FLASHGATE_SERVER_HOST", defaultHost),
		ReadTimeout:     config.GetEnvDuration("FLASHGATE_SERVER_READ_TIMEOUT", defaultTimeout),
		WriteTimeout:    config.GetEnvDuration("FLASHGATE_SERVER_WRITE_TIMEOUT", defaultTimeout),
		ShutdownTimeout: config.GetEnvDuration("FLASHGATE_SERVER_TIMEOUT", defaultTimeout),
		LogLevel:        config.GetEnvLogLevel("FLASHGATE_LOG_LEVEL", defaultLogLevel),
		MaxRequestSize:  config.GetEnvInt64("FLASHGATE_MAX_REQUEST_SIZE", defaultMaxRequestSize),
		AdmissionCap:    config.GetEnvInt64("FLASHGATE_ADMISSION_CAP", defaultAdmissionCap),
		WaitingRoomURL:  config.GetEnvStr("FLASHGATE_WAITING_ROOM_URL", defaultWaitingRoom),
	}
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > maxPort {
		return fmt.Errorf("%w: %d, must be between 1 and %d", ErrInvalidPort, c.Port, maxPort)
	}

	if c.Host == "" {
		return ErrEmptyHost
	}

	if c.ReadTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidReadTimeout, c.ReadTimeout)
	}

	if c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidWriteTimeout, c.WriteTimeout)
	}

	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidShutdownTimeout, c.ShutdownTimeout)
	}

	if c.MaxRequestSize <= 0 {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidMaxRequestSize, c.MaxRequestSize)
	}

	if c.AdmissionCap < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidAdmissionCap, c.AdmissionCap)
	}

	if c.WaitingRoomURL == "" {
		return ErrEmptyWaitingRoomURL
	}

	return nil
}
