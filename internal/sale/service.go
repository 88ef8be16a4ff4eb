package sale

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for hot-path failures. All of them map to a 500 at the
// HTTP layer; ErrReservedNotLogged additionally marks the known
// partial-failure window.
var (
	// ErrAdmissionUnavailable means the counter store failed during the
	// admission tick. Admission cannot be proven, so the request fails
	// closed: no reservation work happens.
	ErrAdmissionUnavailable = errors.New("admission check unavailable")

	// ErrCounterUnavailable means the counter store failed on the
	// idempotency lookup, the reservation script, or the idempotency mark.
	ErrCounterUnavailable = errors.New("counter store unavailable")

	// ErrReservedNotLogged means the atomic decrement succeeded but the
	// durable-log produce failed. The decrement is deliberately NOT
	// compensated: an in-line increment would race with concurrent
	// successful reservations and trade under-sell for oversell. The unit
	// is surfaced via error logs for manual reconciliation.
	ErrReservedNotLogged = errors.New("stock reserved but reservation not logged")
)

// Config holds the tunables of the hot path.
type Config struct {
	// AdmissionCap is the per-second ceiling on requests that proceed past
	// admission. A post-increment tally above the cap is throttled.
	AdmissionCap int64
}

// Service implements the order hot path: a fixed sequence of guarded,
// short-circuiting decisions against the counter store and the durable log.
//
// The step order is load-bearing and must not be rearranged:
//
//	admission -> validation -> idempotency lookup -> atomic reserve
//	          -> durable produce -> idempotency mark
//
// In particular the idempotency marker is set only after the durable write
// has been acknowledged. Marking first would silently lose the order on a
// retry if the produce failed in between. The cost of this ordering is a
// narrow window where a produce success followed by a mark failure lets a
// client retry reserve a second unit; that window is accepted as specified.
type Service struct {
	counter   CounterStore
	producer  EventProducer
	validator *Validator
	config    Config
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates the hot-path service. Dependencies are injected
// explicitly; configuration carries no runtime state.
func NewService(counter CounterStore, producer EventProducer, config Config, logger *slog.Logger) *Service {
	return &Service{
		counter:   counter,
		producer:  producer,
		validator: NewValidator(),
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

// PlaceOrder runs one purchase attempt through the hot path.
//
// Returns a Result for the terminal outcomes (accepted, duplicate, sold out,
// throttled) and an error for validation failures and external-store
// failures. Exactly three external round trips are mandatory on the success
// path: the admission tick, the reservation script, and the acked produce;
// the idempotency lookup and mark add two more.
func (s *Service) PlaceOrder(ctx context.Context, req *OrderRequest) (*Result, error) {
	// Step 1: admission. The tally is charged before validation, so even
	// malformed requests consume admission budget. A counter failure here
	// fails closed.
	bucket := s.now().Unix()

	count, err := s.counter.AdmitTick(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAdmissionUnavailable, err)
	}

	if count > s.config.AdmissionCap {
		return &Result{Outcome: OutcomeThrottled}, nil
	}

	// Step 2: validation. Handled locally; never touches reservation state.
	if err := s.validator.ValidateOrderRequest(req); err != nil {
		return nil, err
	}

	// Step 3: idempotency lookup. Read-only; a hit terminates the request
	// without touching stock or the log.
	seen, err := s.counter.SeenToken(ctx, req.IdempotencyToken)
	if err != nil {
		return nil, fmt.Errorf("%w: idempotency lookup: %w", ErrCounterUnavailable, err)
	}

	if seen {
		return &Result{Outcome: OutcomeDuplicate}, nil
	}

	// Step 4: atomic reservation. The script serializes concurrent
	// contenders at the counter store; the first successful decrement wins.
	reserved, err := s.counter.Reserve(ctx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("%w: reserve: %w", ErrCounterUnavailable, err)
	}

	if !reserved {
		return &Result{Outcome: OutcomeSoldOut}, nil
	}

	// Step 5: durable handoff. From here on a unit of stock is committed;
	// a produce failure leaves the known reserved-but-not-logged state.
	event := &ReservationEvent{
		OrderID:   uuid.NewString(),
		ProductID: req.ProductID,
		UserID:    req.UserID,
		Timestamp: s.now().UnixMilli(),
	}

	if err := s.producer.Produce(ctx, event); err != nil {
		s.logger.Error("Reservation reserved but not logged; unit requires manual reconciliation",
			slog.String("order_id", event.OrderID),
			slog.String("product_id", event.ProductID),
			slog.String("user_id", event.UserID),
			slog.String("error", err.Error()),
		)

		return nil, fmt.Errorf("%w: %w", ErrReservedNotLogged, err)
	}

	// Step 6: idempotency mark. The marker is set last; see the type doc
	// for why. A failure here still returns an error to the client even
	// though the order is already durably logged.
	if err := s.counter.MarkToken(ctx, req.IdempotencyToken); err != nil {
		return nil, fmt.Errorf("%w: idempotency mark: %w", ErrCounterUnavailable, err)
	}

	return &Result{Outcome: OutcomeAccepted, OrderID: event.OrderID}, nil
}

// InitStock overwrites the counter-store stock for a product. Idempotent
// with respect to retry; administrative, not on the hot path. The durable
// product row is expected to exist already (bootstrap's job).
func (s *Service) InitStock(ctx context.Context, productID string, quantity int64) error {
	if err := s.validator.ValidateInit(productID, quantity); err != nil {
		return err
	}

	if err := s.counter.SetStock(ctx, productID, quantity); err != nil {
		return fmt.Errorf("%w: set stock: %w", ErrCounterUnavailable, err)
	}

	s.logger.Info("Counter-store stock initialized",
		slog.String("product_id", productID),
		slog.Int64("quantity", quantity),
	)

	return nil
}
