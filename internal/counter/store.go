// Package counter provides the Redis-backed counter store: per-product
// stock, per-second admission tallies, and idempotency markers, with the
// atomic reservation executed server-side as a Lua script.
package counter

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Key layout. Stock keys carry no expiry; tallies and markers expire.
const (
	stockKeyFormat       = "product:%s:stock"
	rateKeyFormat        = "rate:%d"
	idempotencyKeyFormat = "idempotency:%s"
)

// Store implements sale.CounterStore over a pooled Redis client.
//
// Every method runs under a per-call deadline derived from the request
// context, so a slow counter store surfaces as that call's failure rather
// than holding a request handler indefinitely.
type Store struct {
	client *redis.Client
	config *Config
}

// NewStore creates a counter store and verifies connectivity with a ping.
func NewStore(config *Config) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid counter-store configuration: %w", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:        config.Addr,
		DB:          config.DB,
		PoolSize:    config.PoolSize,
		DialTimeout: config.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to ping counter store at %s: %w", config.Addr, err)
	}

	return &Store{client: client, config: config}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

// HealthCheck verifies the counter store is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("counter store unreachable: %w", err)
	}

	return nil
}

// AdmitTick atomically increments the admission tally for the given
// whole-second bucket and returns the post-increment count.
//
// The increment and the expiry travel in one pipeline: EXPIRE NX attaches
// the window only when the key has none, which is exactly the first
// increment in a bucket. The tally therefore self-destructs two bucket
// widths after its second, bounding memory under sustained bursts.
func (s *Store) AdmitTick(ctx context.Context, bucket int64) (int64, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	key := fmt.Sprintf(rateKeyFormat, bucket)

	var incr *redis.IntCmd

	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, s.config.RateWindow)

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("admission tick for bucket %d: %w", bucket, err)
	}

	return incr.Val(), nil
}

// SeenToken reports whether an idempotency marker exists for the token.
func (s *Store) SeenToken(ctx context.Context, token string) (bool, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	n, err := s.client.Exists(ctx, fmt.Sprintf(idempotencyKeyFormat, token)).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency lookup: %w", err)
	}

	return n > 0, nil
}

// MarkToken sets the idempotency marker for the token with the configured
// expiry. The marker value is immaterial; only presence is consulted.
func (s *Store) MarkToken(ctx context.Context, token string) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	key := fmt.Sprintf(idempotencyKeyFormat, token)

	if err := s.client.Set(ctx, key, "1", s.config.IdempotencyTTL).Err(); err != nil {
		return fmt.Errorf("idempotency mark: %w", err)
	}

	return nil
}

// Reserve runs the atomic reservation script against the product's stock key.
// Returns true when a unit was decremented, false when stock is exhausted.
func (s *Store) Reserve(ctx context.Context, productID string) (bool, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	key := fmt.Sprintf(stockKeyFormat, productID)

	n, err := reserve.Run(ctx, s.client, []string{key}).Int64()
	if err != nil {
		return false, fmt.Errorf("reservation script for %s: %w", productID, err)
	}

	return n == 1, nil
}

// SetStock overwrites the stock counter for the product with no expiry.
func (s *Store) SetStock(ctx context.Context, productID string, quantity int64) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	key := fmt.Sprintf(stockKeyFormat, productID)

	if err := s.client.Set(ctx, key, strconv.FormatInt(quantity, 10), 0).Err(); err != nil {
		return fmt.Errorf("set stock for %s: %w", productID, err)
	}

	return nil
}

// Stock reads the current stock counter. Used by tests and operational
// tooling, never by the hot path.
func (s *Store) Stock(ctx context.Context, productID string) (int64, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	val, err := s.client.Get(ctx, fmt.Sprintf(stockKeyFormat, productID)).Result()
	if err != nil {
		return 0, fmt.Errorf("get stock for %s: %w", productID, err)
	}

	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("non-numeric stock for %s: %w", productID, err)
	}

	return n, nil
}

func (s *Store) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.config.CallTimeout)
}

// StockKey returns the counter-store key for a product's stock. Exported
// for tests and operational tooling that inspect the store directly.
func StockKey(productID string) string {
	return fmt.Sprintf(stockKeyFormat, productID)
}
