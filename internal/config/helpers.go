// Package config provides configuration getters and shared test utilities
// for the flashgate services.
package config

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/flashgate-io/flashgate/migrations"
)

const (
	occurrenceCount = 2
	startUpTimeOut  = 120 * time.Second
)

type (
	// TestDatabase encapsulates test database resources for cleanup.
	// Used by integration tests across multiple packages to maintain
	// consistent test infrastructure.
	TestDatabase struct {
		Container  *postgres.PostgresContainer
		Connection *sql.DB
	}

	// TestRedis encapsulates a throwaway counter-store instance.
	TestRedis struct {
		Container *tcredis.RedisContainer
		Addr      string
	}

	// TestKafka encapsulates a throwaway durable-log broker.
	TestKafka struct {
		Container *tckafka.KafkaContainer
		Brokers   []string
	}
)

// SetupTestDatabase creates a PostgreSQL container and applies the embedded
// migrations. This is the standard way to set up integration test databases
// across all packages.
//
// Usage:
//
//	func TestMyFeature(t *testing.T) {
//		if testing.Short() {
//			t.Skip("skipping integration test in short mode")
//		}
//		ctx := context.Background()
//		testDB := config.SetupTestDatabase(ctx, t)
//		t.Cleanup(func() {
//			_ = testDB.Connection.Close()
//			_ = testcontainers.TerminateContainer(testDB.Container)
//		})
//		// ... your test code
//	}
//
// Cleanup is the caller's responsibility using t.Cleanup().
func SetupTestDatabase(ctx context.Context, t *testing.T) *TestDatabase {
	t.Helper()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("flashgate_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(occurrenceCount).
				WithStartupTimeout(startUpTimeOut),
		),
	)
	require.NoError(t, err, "Failed to start postgres container")
	require.NotNil(t, pgContainer, "postgres container is nil")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	conn, err := sql.Open("postgres", connStr)
	require.NoError(t, err, "Failed to open database")

	// Apply the embedded migrations, exactly as the fulfiller bootstrap does
	if err := migrations.Apply(conn); err != nil {
		_ = conn.Close()
		_ = testcontainers.TerminateContainer(pgContainer)

		t.Fatalf("Failed to run migrations: %v", err)
	}

	return &TestDatabase{
		Container:  pgContainer,
		Connection: conn,
	}
}

// SetupTestRedis creates a Redis container for counter-store integration
// tests and returns its host:port address.
func SetupTestRedis(ctx context.Context, t *testing.T) *TestRedis {
	t.Helper()

	redisContainer, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "Failed to start redis container")

	connStr, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err, "Failed to get redis connection string")

	return &TestRedis{
		Container: redisContainer,
		Addr:      strings.TrimPrefix(connStr, "redis://"),
	}
}

// SetupTestKafka creates a single-node Kafka container for durable-log
// integration tests and returns its broker addresses.
func SetupTestKafka(ctx context.Context, t *testing.T) *TestKafka {
	t.Helper()

	kafkaContainer, err := tckafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("flashgate-test"),
	)
	require.NoError(t, err, "Failed to start kafka container")

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "Failed to get kafka brokers")

	return &TestKafka{
		Container: kafkaContainer,
		Brokers:   brokers,
	}
}
