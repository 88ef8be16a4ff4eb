package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrDLQDisabled is returned by DeadLetter when no DLQ topic is configured.
// Callers must treat it as a failed park and keep holding the offset; a
// message is never dropped just because there is nowhere to put it.
var ErrDLQDisabled = errors.New("no dead-letter topic configured")

// Consumer reads the orders topic as a member of the configured consumer
// group with manual offset commit: a message's offset is committed only
// when the caller says so, which the worker does strictly after its
// record-of-truth transaction has committed.
//
// Within a partition messages are processed in order; workers scale
// horizontally up to the partition count of the topic.
type Consumer struct {
	reader    *kafka.Reader
	dlqWriter *kafka.Writer
	config    *Config
}

// NewConsumer creates a group consumer for the orders topic. On first
// startup the group begins at the earliest offset so no reservation
// produced before the worker existed is lost.
//
// If a DLQ topic is configured, Consumer can park poison or persistently
// diverging messages there instead of blocking the partition.
func NewConsumer(config *Config) (*Consumer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid durable-log configuration: %w", err)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     config.Brokers,
		Topic:       config.OrdersTopic,
		GroupID:     config.ConsumerGroup,
		StartOffset: kafka.FirstOffset,
		MinBytes:    config.MinBytes,
		MaxBytes:    config.MaxBytes,
	})

	var dlqWriter *kafka.Writer
	if config.DLQTopic != "" {
		dlqWriter = &kafka.Writer{
			Addr:     kafka.TCP(config.Brokers...),
			Topic:    config.DLQTopic,
			Balancer: &kafka.Hash{},
		}
	}

	return &Consumer{reader: reader, dlqWriter: dlqWriter, config: config}, nil
}

// Fetch blocks until a message arrives or the context is canceled. The
// message is NOT committed; pass it to Commit once processing has durably
// succeeded.
func (c *Consumer) Fetch(ctx context.Context) (kafka.Message, error) {
	return c.reader.FetchMessage(ctx)
}

// Commit advances the consumer-group offset past the given message.
func (c *Consumer) Commit(ctx context.Context, msg kafka.Message) error {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		return fmt.Errorf("commit offset %d on partition %d: %w", msg.Offset, msg.Partition, err)
	}

	return nil
}

// DeadLetter forwards the original message to the DLQ topic, preserving key
// and payload and attaching reason headers for post-mortem analysis. When no
// DLQ topic is configured it fails with ErrDLQDisabled rather than
// pretending the message was parked.
func (c *Consumer) DeadLetter(ctx context.Context, src kafka.Message, reason string) error {
	if c.dlqWriter == nil {
		return fmt.Errorf("%w: offset %d on partition %d", ErrDLQDisabled, src.Offset, src.Partition)
	}

	dlqMsg := kafka.Message{
		Key:   src.Key,
		Value: src.Value,
		Headers: append(src.Headers,
			kafka.Header{Key: "reason", Value: []byte(reason)},
			kafka.Header{Key: "origin-topic", Value: []byte(c.config.OrdersTopic)},
			kafka.Header{Key: "origin-partition", Value: []byte(fmt.Sprintf("%d", src.Partition))},
			kafka.Header{Key: "origin-offset", Value: []byte(fmt.Sprintf("%d", src.Offset))},
			kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339Nano))},
		),
	}

	if err := c.dlqWriter.WriteMessages(ctx, dlqMsg); err != nil {
		return fmt.Errorf("dead-letter offset %d on partition %d: %w", src.Offset, src.Partition, err)
	}

	return nil
}

// Close closes the reader and, when configured, the DLQ writer.
func (c *Consumer) Close() error {
	err := c.reader.Close()

	if c.dlqWriter != nil {
		if werr := c.dlqWriter.Close(); err == nil {
			err = werr
		}
	}

	return err
}
