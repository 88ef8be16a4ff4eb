// Package main provides the flashgate fulfillment worker.
//
// The fulfiller drains the orders topic and turns acknowledged reservations
// into order rows in the record of truth. On startup it applies the embedded
// schema migrations and optionally seeds the configured product, so a fresh
// environment needs no manual schema step.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/flashgate-io/flashgate/internal/config"
	"github.com/flashgate-io/flashgate/internal/storage"
	"github.com/flashgate-io/flashgate/internal/stream"
	"github.com/flashgate-io/flashgate/internal/worker"
	"github.com/flashgate-io/flashgate/migrations"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "flashgate-fulfiller"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.GetEnvLogLevel("FLASHGATE_LOG_LEVEL", slog.LevelInfo),
	}))

	logger.Info("Starting flashgate fulfiller",
		slog.String("service", name),
		slog.String("version", version),
	)

	// Record of truth (PostgreSQL)
	storageConfig := storage.LoadConfig()

	conn, err := storage.NewConnection(storageConfig)
	if err != nil {
		logger.Error("Failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		_ = conn.Close()
	}()

	logger.Info("Record of truth connected",
		slog.String("database_url", storageConfig.MaskDatabaseURL()),
		slog.Int("database_max_open_conns", storageConfig.MaxOpenConns),
		slog.Int("database_max_idle_conns", storageConfig.MaxIdleConns),
	)

	// Bootstrap: embedded migrations, then optional product seed
	if err := migrations.Apply(conn.DB()); err != nil {
		logger.Error("Schema bootstrap failed", slog.String("error", err.Error()))

		_ = conn.Close()
		//nolint:gocritic // Explicit cleanup before os.Exit is intentional (defer won't run)
		os.Exit(1)
	}

	logger.Info("Schema migrations applied")

	store := storage.NewOrderStore(conn)

	seedProductID := config.GetEnvStr("FLASHGATE_SEED_PRODUCT_ID", "")
	if seedProductID != "" {
		seedStock := config.GetEnvInt64("FLASHGATE_SEED_STOCK", 0)

		if err := store.SeedProduct(context.Background(), seedProductID, seedStock); err != nil {
			logger.Error("Product seed failed",
				slog.String("product_id", seedProductID),
				slog.String("error", err.Error()),
			)

			_ = conn.Close()

			os.Exit(1)
		}

		logger.Info("Product seeded if absent",
			slog.String("product_id", seedProductID),
			slog.Int64("stock", seedStock),
		)
	}

	// Durable log (Kafka)
	streamConfig := stream.LoadConfig()

	consumer, err := stream.NewConsumer(streamConfig)
	if err != nil {
		logger.Error("Failed to create consumer", slog.String("error", err.Error()))

		_ = conn.Close()

		os.Exit(1)
	}

	defer func() {
		_ = consumer.Close()
	}()

	logger.Info("Consumer joined group",
		slog.Any("brokers", streamConfig.Brokers),
		slog.String("topic", streamConfig.OrdersTopic),
		slog.String("group", streamConfig.ConsumerGroup),
		slog.String("dlq_topic", streamConfig.DLQTopic),
	)

	workerConfig := worker.LoadConfig()
	fulfillmentWorker := worker.New(consumer, store, workerConfig, logger)

	// Run the loop until SIGINT/SIGTERM; cancellation propagates through
	// Fetch and the retry backoffs.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fulfillmentWorker.Run(ctx); err != nil {
		logger.Error("Fulfillment worker failed", slog.String("error", err.Error()))

		stop()

		os.Exit(1)
	}

	logger.Info("Fulfiller stopped")
}
