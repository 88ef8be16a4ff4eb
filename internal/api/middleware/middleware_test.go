package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCorrelationID(t *testing.T) {
	t.Run("generates when absent", func(t *testing.T) {
		var captured string

		handler := CorrelationID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = GetCorrelationID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.NotEmpty(t, captured)
		assert.NotEqual(t, "unknown", captured)
		assert.Equal(t, captured, rec.Header().Get("X-Correlation-ID"))
	})

	t.Run("propagates caller-supplied id", func(t *testing.T) {
		var captured string

		handler := CorrelationID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = GetCorrelationID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-Correlation-ID", "caller-id-123")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "caller-id-123", captured)
		assert.Equal(t, "caller-id-123", rec.Header().Get("X-Correlation-ID"))
	})

	t.Run("unknown outside the chain", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		assert.Equal(t, "unknown", GetCorrelationID(req.Context()))
	})
}

func TestRecovery(t *testing.T) {
	handler := Recovery(testLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	t.Run("generic route answers problem json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()

		require.NotPanics(t, func() {
			handler.ServeHTTP(rec, req)
		})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	})

	t.Run("order route answers the fixed failure body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/order", nil)
		rec := httptest.NewRecorder()

		require.NotPanics(t, func() {
			handler.ServeHTTP(rec, req)
		})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body map[string]string

		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, map[string]string{"status": "error", "msg": "Order processing failed"}, body)
	})
}

func TestApplyOrdering(t *testing.T) {
	var order []string

	tag := func(name string) Option {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Apply(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), tag("first"), tag("second"))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	// The first option is the outermost wrapper
	assert.Equal(t, []string{"first", "second", "handler"}, order)
}

func TestOverloadLimit(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		assert.Nil(t, NewOverloadLimiter(LoadOverloadConfig()))
		assert.Nil(t, NewOverloadLimiter(nil))
	})

	t.Run("nil limiter option is a no-op", func(t *testing.T) {
		called := false

		handler := Apply(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			called = true
		}), WithOverloadLimit(nil, testLogger()))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/order", nil))
		assert.True(t, called)
	})

	t.Run("sheds past the burst", func(t *testing.T) {
		limiter := NewOverloadLimiter(&OverloadConfig{RPS: 1, Burst: 2})
		require.NotNil(t, limiter)

		handler := OverloadLimit(limiter, testLogger())(
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}),
		)

		codes := make([]int, 0, 3)

		for i := 0; i < 3; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/order", nil))
			codes = append(codes, rec.Code)
		}

		// Burst of 2 admits the first two back-to-back requests; the third
		// is shed with a retry hint.
		assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusServiceUnavailable}, codes)
	})

	t.Run("shed response carries retry hint", func(t *testing.T) {
		limiter := NewOverloadLimiter(&OverloadConfig{RPS: 1, Burst: 1})
		require.NotNil(t, limiter)

		handler := OverloadLimit(limiter, testLogger())(
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}),
		)

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/order", nil))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/order", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("Retry-After"))
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	})
}

func TestRequestLogger(t *testing.T) {
	t.Run("passes status through", func(t *testing.T) {
		handler := RequestLogger(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusConflict)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/order", nil))

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("order completion line carries hot-path fields", func(t *testing.T) {
		var buf bytes.Buffer

		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusFound)
		}))

		req := httptest.NewRequest(http.MethodPost, "/order", nil)
		req.Header.Set("x-idempotency-key", "token-abc")

		handler.ServeHTTP(httptest.NewRecorder(), req)

		line := buf.String()
		assert.Contains(t, line, `"idempotency_key_present":true`)
		assert.Contains(t, line, `"throttled":true`)
		assert.Contains(t, line, `"status_code":302`)
	})

	t.Run("non-order routes stay generic", func(t *testing.T) {
		var buf bytes.Buffer

		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

		assert.NotContains(t, buf.String(), "idempotency_key_present")
	})
}
