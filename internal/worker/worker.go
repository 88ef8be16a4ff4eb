// Package worker provides the fulfillment loop: it drains the orders topic
// and turns reservation events into order rows in the record of truth,
// committing consumer offsets only after the database transaction commits.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/flashgate-io/flashgate/internal/sale"
	"github.com/flashgate-io/flashgate/internal/storage"
)

type (
	// MessageSource abstracts the consumer side of the durable log so the
	// loop can be tested against an in-memory fake.
	MessageSource interface {
		Fetch(ctx context.Context) (kafka.Message, error)
		Commit(ctx context.Context, msg kafka.Message) error
		DeadLetter(ctx context.Context, msg kafka.Message, reason string) error
	}

	// Fulfiller abstracts the record-of-truth transaction.
	Fulfiller interface {
		FulfillReservation(ctx context.Context, event *sale.ReservationEvent) error
	}

	// Worker is the fulfillment loop. One Worker serves the partitions the
	// group assigns its reader; messages within a partition are processed
	// strictly in order.
	Worker struct {
		source MessageSource
		store  Fulfiller
		config *Config
		logger *slog.Logger
	}
)

// New creates a fulfillment worker.
func New(source MessageSource, store Fulfiller, config *Config, logger *slog.Logger) *Worker {
	return &Worker{
		source: source,
		store:  store,
		config: config,
		logger: logger,
	}
}

// Run drains the orders topic until the context is canceled. Each message
// goes through:
//
//  1. Envelope parse. Failure is poison: log, advance the offset, continue.
//  2. Fulfillment transaction (conditional decrement + keyed insert).
//  3. Offset commit, strictly after the transaction commit.
//
// A crash between 2 and 3 redelivers the message on restart; the primary-key
// conflict path absorbs the duplicate. Divergence holds the offset and
// retries with backoff; past the configured bound the message is
// dead-lettered so it cannot block the partition head forever. When the park
// fails, including the no-DLQ configuration, the offset stays held and the
// retries continue; a diverging reservation is never dropped. Transient
// database errors retry without bound; consumer lag is the alarm.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Fulfillment worker started")

	for {
		msg, err := w.source.Fetch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				w.logger.Info("Fulfillment worker stopping", slog.String("reason", err.Error()))

				return nil
			}

			return err
		}

		if err := w.processMessage(ctx, msg); err != nil {
			// Only context cancellation escapes processMessage.
			return nil
		}
	}
}

// processMessage drives one message to a committed offset or a context
// cancellation. It never returns a processing error: every terminal state
// (fulfilled, duplicate, poison, dead-lettered) ends in an offset commit.
func (w *Worker) processMessage(ctx context.Context, msg kafka.Message) error {
	var event sale.ReservationEvent

	if err := json.Unmarshal(msg.Value, &event); err != nil || event.OrderID == "" {
		w.logger.Error("Poison message skipped",
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.String("error", errString(err)),
		)

		w.commit(ctx, msg)

		return ctx.Err()
	}

	divergenceAttempts := 0

	for {
		err := w.store.FulfillReservation(ctx, &event)

		switch {
		case err == nil:
			w.logger.Info("Reservation fulfilled",
				slog.String("order_id", event.OrderID),
				slog.String("product_id", event.ProductID),
				slog.Int64("offset", msg.Offset),
			)

			w.commit(ctx, msg)

			return ctx.Err()

		case errors.Is(err, storage.ErrAlreadyFulfilled):
			// Redelivery of a processed message; the previous run succeeded.
			w.logger.Info("Duplicate delivery absorbed",
				slog.String("order_id", event.OrderID),
				slog.Int64("offset", msg.Offset),
			)

			w.commit(ctx, msg)

			return ctx.Err()

		case errors.Is(err, storage.ErrStockDivergence):
			divergenceAttempts++

			w.logger.Error("Counter/durable stock divergence; offset held",
				slog.String("order_id", event.OrderID),
				slog.String("product_id", event.ProductID),
				slog.String("user_id", event.UserID),
				slog.Int64("timestamp", event.Timestamp),
				slog.Int("attempt", divergenceAttempts),
				slog.String("error", err.Error()),
			)

			if w.config.DivergenceRetries > 0 && divergenceAttempts >= w.config.DivergenceRetries {
				if dlqErr := w.source.DeadLetter(ctx, msg, "stock_divergence"); dlqErr != nil {
					w.logger.Error("Dead-letter write failed; will retry message",
						slog.String("order_id", event.OrderID),
						slog.String("error", dlqErr.Error()),
					)

					divergenceAttempts = 0

					if !w.sleep(ctx) {
						return ctx.Err()
					}

					continue
				}

				w.logger.Warn("Diverging message dead-lettered",
					slog.String("order_id", event.OrderID),
					slog.Int64("offset", msg.Offset),
				)

				w.commit(ctx, msg)

				return ctx.Err()
			}

			if !w.sleep(ctx) {
				return ctx.Err()
			}

		default:
			// Transient record-of-truth failure: hold the offset and retry.
			w.logger.Error("Fulfillment failed; retrying",
				slog.String("order_id", event.OrderID),
				slog.String("error", err.Error()),
			)

			if !w.sleep(ctx) {
				return ctx.Err()
			}
		}
	}
}

// commit advances the offset; a commit failure is logged and tolerated
// because redelivery is absorbed by the orders primary key.
func (w *Worker) commit(ctx context.Context, msg kafka.Message) {
	if err := w.source.Commit(ctx, msg); err != nil {
		w.logger.Error("Offset commit failed; duplicate delivery possible",
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
	}
}

// sleep pauses for the retry backoff; returns false when the context is
// canceled first.
func (w *Worker) sleep(ctx context.Context) bool {
	timer := time.NewTimer(w.config.RetryBackoff)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func errString(err error) string {
	if err == nil {
		return "missing orderId in envelope"
	}

	return err.Error()
}
