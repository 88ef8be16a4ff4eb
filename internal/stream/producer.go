// Package stream provides the durable-log layer: an acked reservation
// producer and a consumer-group reader with manual offset commit, both on
// top of segmentio/kafka-go.
package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/flashgate-io/flashgate/internal/sale"
)

// Producer implements sale.EventProducer on a kafka.Writer.
//
// Messages are keyed by product id so that, with more than one partition,
// all reservations for a product land on the same partition and the worker
// observes them in reservation order. RequireAll acks mean Produce returns
// only after the broker has durably accepted the message; a reply of
// "accepted" to the client therefore implies the event is in the log.
type Producer struct {
	writer *kafka.Writer
	config *Config
}

// NewProducer creates a reservation producer for the orders topic.
func NewProducer(config *Config) (*Producer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid durable-log configuration: %w", err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.OrdersTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: config.ProduceTimeout,
	}

	return &Producer{writer: writer, config: config}, nil
}

// Produce appends one reservation event to the orders topic and waits for
// broker acknowledgment.
func (p *Producer) Produce(ctx context.Context, event *sale.ReservationEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal reservation envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.ProduceTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.ProductID),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("produce reservation %s: %w", event.OrderID, err)
	}

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
