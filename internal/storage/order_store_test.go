package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"

	"github.com/flashgate-io/flashgate/internal/config"
	"github.com/flashgate-io/flashgate/internal/sale"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unique violation", &pq.Error{Code: "23505"}, true},
		{"wrapped unique violation", fmt.Errorf("insert order: %w", &pq.Error{Code: "23505"}), true},
		{"foreign key violation", &pq.Error{Code: "23503"}, false},
		{"plain error", errors.New("connection reset"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolation(tt.err))
		})
	}
}

func setupOrderStore(t *testing.T) *OrderStore {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB := config.SetupTestDatabase(ctx, t)

	t.Cleanup(func() {
		_ = testDB.Connection.Close()
		_ = testcontainers.TerminateContainer(testDB.Container)
	})

	return NewOrderStore(WrapDB(testDB.Connection))
}

func event(orderID string) *sale.ReservationEvent {
	return &sale.ReservationEvent{
		OrderID:   orderID,
		ProductID: "widget-1",
		UserID:    "user_42",
		Timestamp: 1700000000123,
	}
}

func TestFulfillReservation(t *testing.T) {
	store := setupOrderStore(t)
	ctx := context.Background()

	require.NoError(t, store.SeedProduct(ctx, "widget-1", 2))

	require.NoError(t, store.FulfillReservation(ctx, event("order-1")))

	stock, err := store.ProductStock(ctx, "widget-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stock)

	count, err := store.CountOrders(ctx, "widget-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestFulfillReservationRedelivery(t *testing.T) {
	store := setupOrderStore(t)
	ctx := context.Background()

	require.NoError(t, store.SeedProduct(ctx, "widget-1", 5))
	require.NoError(t, store.FulfillReservation(ctx, event("order-1")))

	err := store.FulfillReservation(ctx, event("order-1"))
	assert.ErrorIs(t, err, ErrAlreadyFulfilled)

	// The redelivery's transaction rolled back: no double decrement, no
	// duplicate order row.
	stock, err := store.ProductStock(ctx, "widget-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), stock)

	count, err := store.CountOrders(ctx, "widget-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestFulfillReservationDivergence(t *testing.T) {
	store := setupOrderStore(t)
	ctx := context.Background()

	require.NoError(t, store.SeedProduct(ctx, "widget-1", 0))

	err := store.FulfillReservation(ctx, event("order-1"))
	assert.ErrorIs(t, err, ErrStockDivergence)

	count, err := store.CountOrders(ctx, "widget-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "a diverging event must not leave an order row")
}

func TestFulfillReservationNeverOversells(t *testing.T) {
	store := setupOrderStore(t)
	ctx := context.Background()

	require.NoError(t, store.SeedProduct(ctx, "widget-1", 3))

	for i := 1; i <= 3; i++ {
		require.NoError(t, store.FulfillReservation(ctx, event(fmt.Sprintf("order-%d", i))))
	}

	err := store.FulfillReservation(ctx, event("order-4"))
	assert.ErrorIs(t, err, ErrStockDivergence)

	// Committed orders never exceed the seeded stock
	count, err := store.CountOrders(ctx, "widget-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	stock, err := store.ProductStock(ctx, "widget-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stock)
}

func TestSeedProductIsIdempotent(t *testing.T) {
	store := setupOrderStore(t)
	ctx := context.Background()

	require.NoError(t, store.SeedProduct(ctx, "widget-1", 10))
	require.NoError(t, store.SeedProduct(ctx, "widget-1", 999))

	// The second seed is a no-op: the first write wins
	stock, err := store.ProductStock(ctx, "widget-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), stock)
}

func TestProductStockMissingProduct(t *testing.T) {
	store := setupOrderStore(t)

	_, err := store.ProductStock(context.Background(), "ghost-product")
	assert.Error(t, err)
}

func TestOrderStoreHealthCheck(t *testing.T) {
	store := setupOrderStore(t)

	assert.NoError(t, store.HealthCheck(context.Background()))
}
