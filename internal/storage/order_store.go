package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/flashgate-io/flashgate/internal/sale"
)

// pq error code for unique_violation; the sole source of the worker's
// exactly-once behavior on redelivery.
const uniqueViolation = "23505"

var (
	// ErrStockDivergence means the conditional decrement affected zero rows:
	// the counter store said yes but the durable row has no stock left. The
	// transaction is rolled back and the offset must NOT be committed.
	ErrStockDivergence = errors.New("durable stock exhausted for reserved unit")

	// ErrAlreadyFulfilled means the order row already exists: this message
	// is a redelivery of an already-processed reservation. The transaction
	// is rolled back and the offset SHOULD be committed.
	ErrAlreadyFulfilled = errors.New("reservation already fulfilled")
)

// OrderStore persists reservation events into the record of truth.
//
// Orders are exclusively written here; the products row is mutated only
// under the guarded conditional decrement. Both facts together give the
// audit invariant: committed orders per product never exceed initial stock.
type OrderStore struct {
	conn *Connection
}

// NewOrderStore creates an order store over an existing connection.
func NewOrderStore(conn *Connection) *OrderStore {
	return &OrderStore{conn: conn}
}

// FulfillReservation applies one reservation event transactionally:
//
//  1. Conditionally decrement the durable product row (stock > 0 guard).
//     Zero affected rows signal counter/durable divergence: rollback,
//     ErrStockDivergence.
//  2. Insert the order row keyed by the reservation id. A unique-key
//     conflict is a redelivery: rollback, ErrAlreadyFulfilled.
//  3. Commit.
//
// The caller commits the consumer offset only on nil or ErrAlreadyFulfilled.
func (s *OrderStore) FulfillReservation(ctx context.Context, event *sale.ReservationEvent) error {
	tx, err := s.conn.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin fulfillment transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback() // No-op after a successful commit
	}()

	result, err := tx.ExecContext(ctx,
		`UPDATE products SET stock = stock - 1 WHERE id = $1 AND stock > 0`,
		event.ProductID,
	)
	if err != nil {
		return fmt.Errorf("conditional decrement for %s: %w", event.ProductID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %s: %w", event.ProductID, err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: product %s, order %s", ErrStockDivergence, event.ProductID, event.OrderID)
	}

	createdAt := time.UnixMilli(event.Timestamp).UTC()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, product_id, user_id, created_at) VALUES ($1, $2, $3, $4)`,
		event.OrderID, event.ProductID, event.UserID, createdAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: order %s", ErrAlreadyFulfilled, event.OrderID)
		}

		return fmt.Errorf("insert order %s: %w", event.OrderID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit fulfillment for order %s: %w", event.OrderID, err)
	}

	return nil
}

// SeedProduct inserts a product row with initial stock if absent. Existing
// rows are left untouched, so repeated bootstraps are harmless.
func (s *OrderStore) SeedProduct(ctx context.Context, productID string, stock int64) error {
	_, err := s.conn.db.ExecContext(ctx,
		`INSERT INTO products (id, stock) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		productID, stock,
	)
	if err != nil {
		return fmt.Errorf("seed product %s: %w", productID, err)
	}

	return nil
}

// ProductStock reads the durable stock for a product.
func (s *OrderStore) ProductStock(ctx context.Context, productID string) (int64, error) {
	var stock int64

	err := s.conn.db.QueryRowContext(ctx,
		`SELECT stock FROM products WHERE id = $1`, productID,
	).Scan(&stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("product %s not found", productID)
		}

		return 0, fmt.Errorf("read stock for %s: %w", productID, err)
	}

	return stock, nil
}

// CountOrders returns the number of order rows for a product.
func (s *OrderStore) CountOrders(ctx context.Context, productID string) (int64, error) {
	var count int64

	err := s.conn.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE product_id = $1`, productID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count orders for %s: %w", productID, err)
	}

	return count, nil
}

// HealthCheck verifies the storage backend is reachable.
func (s *OrderStore) HealthCheck(ctx context.Context) error {
	return s.conn.HealthCheck(ctx)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error

	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
