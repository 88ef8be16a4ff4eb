package stream_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"

	"github.com/flashgate-io/flashgate/internal/config"
	"github.com/flashgate-io/flashgate/internal/sale"
	"github.com/flashgate-io/flashgate/internal/stream"
)

func setupStream(t *testing.T) *stream.Config {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testKafka := config.SetupTestKafka(ctx, t)

	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(testKafka.Container)
	})

	cfg := stream.LoadConfig()
	cfg.Brokers = testKafka.Brokers

	return cfg
}

func TestProduceConsumeRoundtrip(t *testing.T) {
	cfg := setupStream(t)
	ctx := context.Background()

	producer, err := stream.NewProducer(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { _ = producer.Close() })

	event := &sale.ReservationEvent{
		OrderID:   "order-1",
		ProductID: "widget-1",
		UserID:    "user_42",
		Timestamp: time.Now().UnixMilli(),
	}
	require.NoError(t, producer.Produce(ctx, event))

	consumer, err := stream.NewConsumer(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { _ = consumer.Close() })

	fetchCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	msg, err := consumer.Fetch(fetchCtx)
	require.NoError(t, err)

	// Keyed by product id so per-product ordering survives partitioning
	assert.Equal(t, "widget-1", string(msg.Key))

	var got sale.ReservationEvent

	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, *event, got)

	require.NoError(t, consumer.Commit(ctx, msg))
}

func TestConsumerHoldsUncommittedOffset(t *testing.T) {
	cfg := setupStream(t)
	ctx := context.Background()

	producer, err := stream.NewProducer(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { _ = producer.Close() })

	event := &sale.ReservationEvent{
		OrderID:   "order-held",
		ProductID: "widget-1",
		UserID:    "user_42",
		Timestamp: time.Now().UnixMilli(),
	}
	require.NoError(t, producer.Produce(ctx, event))

	// First consumer fetches but never commits
	first, err := stream.NewConsumer(cfg)
	require.NoError(t, err)

	fetchCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	msg, err := first.Fetch(fetchCtx)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// A second member of the same group sees the message again
	second, err := stream.NewConsumer(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { _ = second.Close() })

	refetchCtx, cancel2 := context.WithTimeout(ctx, 60*time.Second)
	defer cancel2()

	redelivered, err := second.Fetch(refetchCtx)
	require.NoError(t, err)
	assert.Equal(t, msg.Value, redelivered.Value)

	require.NoError(t, second.Commit(ctx, redelivered))
}
