// Package sale provides the flash-sale domain model and the hot-path
// reservation service.
//
// This package defines the CounterStore and EventProducer interfaces which
// represent what the domain needs from the counter store and the durable log,
// following the Dependency Inversion Principle. Concrete implementations
// (Redis, Kafka, in-memory fakes) live in internal/counter and internal/stream.
package sale

import "context"

// ReservationEvent is the envelope appended to the durable log for every
// successful atomic reservation. It is consumed exactly once (modulo
// at-least-once redelivery) by the fulfillment worker, which persists it as
// an order row keyed by OrderID.
//
// The OrderID is server-generated and becomes the orders primary key; that
// key is what gives the worker its idempotence on redelivery. The client's
// idempotency token never appears in the envelope.
type ReservationEvent struct {
	OrderID   string `json:"orderId"`
	ProductID string `json:"productId"`
	UserID    string `json:"userId"`
	Timestamp int64  `json:"timestamp"` // milliseconds since epoch
}

// Outcome classifies the terminal state of a single order attempt.
type Outcome int

const (
	// OutcomeAccepted means stock was reserved and the reservation event was
	// acknowledged by the durable log. It does not mean the order row exists yet.
	OutcomeAccepted Outcome = iota

	// OutcomeDuplicate means the idempotency token was already marked; stock
	// and the durable log were not touched.
	OutcomeDuplicate

	// OutcomeSoldOut means the atomic reservation script found no stock left.
	OutcomeSoldOut

	// OutcomeThrottled means the admission cap for the current second was
	// exceeded; the request was not processed further.
	OutcomeThrottled
)

// String returns the wire-friendly name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeSoldOut:
		return "sold_out"
	case OutcomeThrottled:
		return "throttled"
	default:
		return "unknown"
	}
}

// Result is the terminal state of PlaceOrder. OrderID is set only for
// OutcomeAccepted.
type Result struct {
	Outcome Outcome
	OrderID string
}

// OrderRequest carries the client-supplied fields of a purchase attempt.
type OrderRequest struct {
	ProductID        string
	UserID           string
	IdempotencyToken string
}

// CounterStore is the fast in-memory store fronting the record of truth.
// It holds per-product stock, per-second admission tallies, and idempotency
// markers, and executes the atomic reservation server-side.
//
// All methods take a context; implementations are expected to bound each
// round trip with a deadline derived from it.
type CounterStore interface {
	// AdmitTick atomically increments the admission tally for the given
	// whole-second bucket and returns the post-increment count. The first
	// increment in a bucket attaches an expiry of at least two bucket widths.
	AdmitTick(ctx context.Context, bucket int64) (int64, error)

	// SeenToken reports whether an idempotency marker exists for the token.
	// It never mutates the marker.
	SeenToken(ctx context.Context, token string) (bool, error)

	// MarkToken sets the idempotency marker for the token with the store's
	// configured expiry.
	MarkToken(ctx context.Context, token string) error

	// Reserve executes the atomic reservation script for the product's stock
	// key: if the current value is at least 1 it is decremented and Reserve
	// returns true; otherwise false. The check-and-decrement is a single
	// indivisible operation in the store.
	Reserve(ctx context.Context, productID string) (bool, error)

	// SetStock overwrites the stock counter for the product. Used by the
	// administrative init operation and by bootstrap; never on the hot path.
	SetStock(ctx context.Context, productID string, quantity int64) error
}

// EventProducer appends reservation events to the durable log and waits for
// broker acknowledgment before returning.
type EventProducer interface {
	Produce(ctx context.Context, event *ReservationEvent) error
}
