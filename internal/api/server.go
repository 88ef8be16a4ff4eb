// Package api provides the HTTP ingestion surface for the flashgate gateway.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flashgate-io/flashgate/internal/api/middleware"
	"github.com/flashgate-io/flashgate/internal/sale"
)

type (
	// OrderService is the hot-path surface the server needs from the domain.
	// Implemented by sale.Service; tests substitute a fake.
	OrderService interface {
		PlaceOrder(ctx context.Context, req *sale.OrderRequest) (*sale.Result, error)
		InitStock(ctx context.Context, productID string, quantity int64) error
	}

	// HealthChecker verifies a backing store is reachable. The readiness
	// probe uses the counter store's check: when the counter is down the
	// gateway fails every order closed anyway.
	HealthChecker interface {
		HealthCheck(ctx context.Context) error
	}

	// Server represents the gateway HTTP server.
	Server struct {
		httpServer    *http.Server
		logger        *slog.Logger
		config        *ServerConfig
		startTime     time.Time
		service       OrderService
		counterHealth HealthChecker
		limiter       *middleware.OverloadLimiter
	}
)

// NewServer creates a new HTTP server instance with structured logging and middleware stack.
//
// Dependencies are injected explicitly rather than being part of ServerConfig.
// A nil limiter disables instance-local load shedding; a nil counterHealth
// makes the readiness probe report ready unconditionally.
func NewServer(cfg *ServerConfig, service OrderService, counterHealth HealthChecker, limiter *middleware.OverloadLimiter) *Server {
	// Create structured logger with configured log level
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// Create base HTTP mux
	mux := http.NewServeMux()

	server := &Server{
		logger:        logger,
		config:        cfg,
		service:       service,
		counterHealth: counterHealth,
		limiter:       limiter,
	}

	// Set up all API routes
	server.setupRoutes(mux)

	if limiter != nil {
		logger.Info("Instance overload limiter enabled")
	}

	// Apply middleware chain using functional options pattern.
	// Middleware executes in the order listed (top-to-bottom):
	//   1. CorrelationID - generate correlation ID for all responses
	//   2. Recovery - catch panics in all downstream middleware
	//   3. OverloadLimit - shed load before touching the counter store (optional)
	//   4. RequestLogger - log only requests that were not shed
	handler := middleware.Apply(mux,
		middleware.WithCorrelationID(),
		middleware.WithRecovery(logger),
		middleware.WithOverloadLimit(limiter, logger),
		middleware.WithRequestLogger(logger),
	)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	server.httpServer = httpServer

	return server
}

// Start starts the HTTP server and blocks until shutdown.
// It handles graceful shutdown on SIGINT and SIGTERM signals.
func (s *Server) Start() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	// Record server start time for uptime calculation
	s.startTime = time.Now()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	// Start server in a goroutine
	go func() {
		s.logger.Info("Starting gateway API server",
			slog.String("address", s.config.Address()),
			slog.Duration("read_timeout", s.config.ReadTimeout),
			slog.Duration("write_timeout", s.config.WriteTimeout),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
			slog.Int64("admission_cap", s.config.AdmissionCap),
			slog.String("waiting_room_url", s.config.WaitingRoomURL),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server failed to start",
				slog.String("address", s.config.Address()),
				slog.String("error", err.Error()),
			)

			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		return err
	case sig := <-stop:
		s.logger.Info("Received shutdown signal",
			slog.String("signal", sig.String()),
		)

		return s.shutdown()
	}
}

// shutdown gracefully shuts down the server.
func (s *Server) shutdown() error {
	// Create context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Initiating server shutdown",
		slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
	)

	// Attempt graceful shutdown of HTTP server
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Server shutdown failed",
			slog.String("error", err.Error()),
			slog.Duration("shutdown_timeout", s.config.ShutdownTimeout),
		)

		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("Server shutdown completed successfully")

	return nil
}
