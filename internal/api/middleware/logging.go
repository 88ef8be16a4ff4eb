// Package middleware provides HTTP middleware components for the gateway API.
package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// RequestLogger creates a middleware that emits one structured line per
// completed request. The hot path answers a burst of small requests, so
// there is no separate started/completed pair; everything worth keeping is
// on the completion line. Order traffic additionally records whether the
// client sent an idempotency token and whether it was redirected to the
// waiting room, the first two things to check when a duplicate storm or a
// throttling complaint shows up in the logs.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", rw.statusCode),
				slog.Int("bytes", rw.bytesWritten),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("correlation_id", GetCorrelationID(r.Context())),
			}

			if isOrderRequest(r) {
				args = append(args,
					slog.Bool("idempotency_key_present", r.Header.Get("x-idempotency-key") != ""),
					slog.Bool("throttled", rw.statusCode == http.StatusFound),
				)
			}

			logger.Info("HTTP request completed", args...)
		})
	}
}

// isOrderRequest reports whether the request targets the purchase hot path.
func isOrderRequest(r *http.Request) bool {
	return r.Method == http.MethodPost && r.URL.Path == "/order"
}

// responseWriter wraps http.ResponseWriter to capture status code and size.
type responseWriter struct {
	http.ResponseWriter

	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(data []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(data)
	rw.bytesWritten += n

	return n, err
}
