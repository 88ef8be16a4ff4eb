// Package middleware provides HTTP middleware components for the gateway API.
package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/flashgate-io/flashgate/internal/config"
)

const burstCapacityMultiplier = 2

type (
	// OverloadConfig holds per-instance overload shedding configuration.
	//
	// This limiter is a local defense for a single gateway instance; it is
	// independent of the shared admission tally in the counter store, which
	// remains the authoritative throttle. RPS 0 disables shedding entirely,
	// which is the default: admission alone decides who gets redirected.
	OverloadConfig struct {
		RPS   int
		Burst int
	}

	// OverloadLimiter implements instance-local load shedding using
	// golang.org/x/time/rate.
	//
	// Uses a single token bucket; burst capacity allows temporary bursts
	// above the sustained rate.
	OverloadLimiter struct {
		limiter *rate.Limiter
	}
)

// LoadOverloadConfig loads overload shedding configuration from environment
// variables with fallback to defaults.
func LoadOverloadConfig() *OverloadConfig {
	rps := config.GetEnvInt("FLASHGATE_OVERLOAD_RPS", 0)

	return &OverloadConfig{
		RPS:   rps,
		Burst: config.GetEnvInt("FLASHGATE_OVERLOAD_BURST", rps*burstCapacityMultiplier),
	}
}

// NewOverloadLimiter creates an overload limiter from configuration.
// Returns nil when shedding is disabled (RPS <= 0); a nil limiter is a no-op
// in the middleware chain.
func NewOverloadLimiter(cfg *OverloadConfig) *OverloadLimiter {
	if cfg == nil || cfg.RPS <= 0 {
		return nil
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RPS * burstCapacityMultiplier
	}

	return &OverloadLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), burst),
	}
}

// Allow reports whether a request should be admitted by the local limiter.
func (l *OverloadLimiter) Allow() bool {
	return l.limiter.Allow()
}

// OverloadLimit creates a middleware that sheds load when the instance-local
// rate limiter is exhausted. Shed requests get a 503 problem response and are
// never forwarded to the counter store.
func OverloadLimit(limiter *OverloadLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter.Allow() {
				next.ServeHTTP(w, r)

				return
			}

			correlationID := GetCorrelationID(r.Context())

			logger.Warn("Request shed by instance overload limiter",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("correlation_id", correlationID),
			)

			problemDetail := struct {
				Type          string `json:"type"`
				Title         string `json:"title"`
				Status        int    `json:"status"`
				Detail        string `json:"detail"`
				Instance      string `json:"instance"`
				CorrelationID string `json:"correlation_id"` //nolint: tagliatelle
			}{
				Type:          fmt.Sprintf("https://flashgate.io/problems/%d", http.StatusServiceUnavailable),
				Title:         "Service Unavailable",
				Status:        http.StatusServiceUnavailable,
				Detail:        "Instance is overloaded, retry later",
				Instance:      r.URL.Path,
				CorrelationID: correlationID,
			}

			w.Header().Set("Content-Type", "application/problem+json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusServiceUnavailable)

			if err := json.NewEncoder(w).Encode(problemDetail); err != nil {
				logger.Error("Failed to encode overload response",
					slog.Any("error", err),
					slog.String("correlation_id", correlationID),
				)
			}
		})
	}
}
