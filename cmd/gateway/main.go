// Package main provides the flashgate gateway service.
//
// The gateway is the ingestion edge of the flash sale: it admits, validates,
// reserves against the counter store, and hands accepted reservations to the
// durable log. It never touches the record of truth.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/flashgate-io/flashgate/internal/api"
	"github.com/flashgate-io/flashgate/internal/api/middleware"
	"github.com/flashgate-io/flashgate/internal/counter"
	"github.com/flashgate-io/flashgate/internal/sale"
	"github.com/flashgate-io/flashgate/internal/stream"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "flashgate-gateway"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	serverConfig := api.LoadServerConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: serverConfig.LogLevel,
	}))

	logger.Info("Starting flashgate gateway",
		slog.String("service", name),
		slog.String("version", version),
	)

	logger.Info("Loaded server configuration",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.Duration("read_timeout", serverConfig.ReadTimeout),
		slog.Duration("write_timeout", serverConfig.WriteTimeout),
		slog.Duration("shutdown_timeout", serverConfig.ShutdownTimeout),
		slog.Int64("admission_cap", serverConfig.AdmissionCap),
		slog.String("waiting_room_url", serverConfig.WaitingRoomURL),
		slog.String("log_level", serverConfig.LogLevel.String()),
	)

	// Counter store (Redis)
	counterConfig := counter.LoadConfig()

	counterStore, err := counter.NewStore(counterConfig)
	if err != nil {
		logger.Error("Failed to connect to counter store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		_ = counterStore.Close()
	}()

	logger.Info("Counter store connected",
		slog.String("addr", counterConfig.Addr),
		slog.Duration("call_timeout", counterConfig.CallTimeout),
		slog.Duration("idempotency_ttl", counterConfig.IdempotencyTTL),
	)

	// Durable log (Kafka)
	streamConfig := stream.LoadConfig()

	producer, err := stream.NewProducer(streamConfig)
	if err != nil {
		logger.Error("Failed to create reservation producer", slog.String("error", err.Error()))

		_ = counterStore.Close()
		//nolint:gocritic // Explicit cleanup before os.Exit is intentional (defer won't run)
		os.Exit(1)
	}

	defer func() {
		_ = producer.Close()
	}()

	logger.Info("Reservation producer initialized",
		slog.Any("brokers", streamConfig.Brokers),
		slog.String("topic", streamConfig.OrdersTopic),
		slog.Duration("produce_timeout", streamConfig.ProduceTimeout),
	)

	// Hot-path service
	service := sale.NewService(counterStore, producer, sale.Config{
		AdmissionCap: serverConfig.AdmissionCap,
	}, logger)

	// Optional instance-local load shedding (disabled unless configured)
	limiter := middleware.NewOverloadLimiter(middleware.LoadOverloadConfig())

	server := api.NewServer(serverConfig, service, counterStore, limiter)

	if err := server.Start(); err != nil {
		logger.Error("Server failed to start",
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	logger.Info("Gateway stopped")
}
