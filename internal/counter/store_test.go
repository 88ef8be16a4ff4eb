package counter_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"

	"github.com/flashgate-io/flashgate/internal/config"
	"github.com/flashgate-io/flashgate/internal/counter"
)

func setupStore(t *testing.T) *counter.Store {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testRedis := config.SetupTestRedis(ctx, t)

	cfg := counter.LoadConfig()
	cfg.Addr = testRedis.Addr

	store, err := counter.NewStore(cfg)
	require.NoError(t, err, "Failed to connect to counter store")

	t.Cleanup(func() {
		_ = store.Close()
		_ = testcontainers.TerminateContainer(testRedis.Container)
	})

	return store
}

func TestStoreStockLifecycle(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetStock(ctx, "widget-1", 3))

	stock, err := store.Stock(ctx, "widget-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stock)

	// Three reservations drain the stock, the fourth is refused, and the
	// counter never goes below zero.
	for i := 0; i < 3; i++ {
		ok, err := store.Reserve(ctx, "widget-1")
		require.NoError(t, err)
		assert.True(t, ok, "reservation %d should succeed", i+1)
	}

	ok, err := store.Reserve(ctx, "widget-1")
	require.NoError(t, err)
	assert.False(t, ok, "reservation past zero must be refused")

	stock, err = store.Stock(ctx, "widget-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stock)
}

func TestStoreReserveUnderContention(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	const (
		stock      = 5
		contenders = 32
	)

	require.NoError(t, store.SetStock(ctx, "widget-1", stock))

	var (
		wg        sync.WaitGroup
		successes atomic.Int64
	)

	errs := make(chan error, contenders)
	start := make(chan struct{})

	for i := 0; i < contenders; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			<-start

			ok, err := store.Reserve(ctx, "widget-1")
			if err != nil {
				errs <- err

				return
			}

			if ok {
				successes.Add(1)
			}
		}()
	}

	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("reserve failed under contention: %v", err)
	}

	// Exactly as many winners as units; the script serializes contenders
	// server-side so oversell is impossible no matter the interleaving.
	assert.Equal(t, int64(stock), successes.Load())

	remaining, err := store.Stock(ctx, "widget-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), remaining)
}

func TestStoreReserveMissingProduct(t *testing.T) {
	store := setupStore(t)

	// An uninitialized product behaves as sold out, not as an error.
	ok, err := store.Reserve(context.Background(), "ghost-product")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreSetStockOverwrites(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetStock(ctx, "widget-1", 5))
	require.NoError(t, store.SetStock(ctx, "widget-1", 100))

	stock, err := store.Stock(ctx, "widget-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), stock)
}

func TestStoreAdmitTick(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	count, err := store.AdmitTick(ctx, 1700000000)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = store.AdmitTick(ctx, 1700000000)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// A different bucket starts its own tally
	count, err = store.AdmitTick(ctx, 1700000001)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestStoreIdempotencyMarkers(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	seen, err := store.SeenToken(ctx, "token-abc")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.MarkToken(ctx, "token-abc"))

	seen, err = store.SeenToken(ctx, "token-abc")
	require.NoError(t, err)
	assert.True(t, seen)

	// Unrelated tokens are unaffected
	seen, err = store.SeenToken(ctx, "token-xyz")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestStoreHealthCheck(t *testing.T) {
	store := setupStore(t)

	assert.NoError(t, store.HealthCheck(context.Background()))
}
