// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. The producer publishes index entries as JSON; the
// consumer feeds raw forum record lines to a MessageHandler until the topic
// goes idle.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/config"
	"github.com/segmentio/kafka-go"
)

// MessageHandler is a callback invoked for each Kafka message. Returning an
// error stops the consume loop without committing the message.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// MessageReader is the subset of *kafka.Reader the Consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads messages from a Kafka topic and dispatches them to a
// MessageHandler.
type Consumer struct {
	reader      MessageReader
	logger      *slog.Logger
	handler     MessageHandler
	idleTimeout time.Duration
	deferred    bool

	mu      sync.Mutex
	pending map[partitionKey]kafka.Message
}

type partitionKey struct {
	topic     string
	partition int
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithDeferredCommit holds handled messages back instead of committing each
// one. They are committed by Commit, so a caller can acknowledge the topic
// only once whatever it built from the messages is durable.
func WithDeferredCommit() ConsumerOption {
	return func(c *Consumer) { c.deferred = true }
}

// NewConsumer creates a Consumer for the given topic and handler. The topic
// is read from the earliest uncommitted offset of the consumer group.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return NewConsumerWithReader(r, topic, cfg.IdleTimeout, handler, opts...)
}

// NewConsumerWithReader wraps an existing reader. A zero idleTimeout
// consumes until ctx is cancelled.
func NewConsumerWithReader(r MessageReader, topic string, idleTimeout time.Duration, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		reader:      r,
		logger:      slog.Default().With("component", "kafka-consumer", "topic", topic),
		handler:     handler,
		idleTimeout: idleTimeout,
		pending:     make(map[partitionKey]kafka.Message),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start enters the consume loop. It returns nil when ctx is cancelled or no
// message arrives within the idle timeout, and the handler's error if it
// fails.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started", "idle_timeout", c.idleTimeout)
	consumed := 0
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopping", "reason", ctx.Err(), "consumed", consumed)
			return nil
		default:
		}

		msg, err := c.fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, context.DeadlineExceeded) {
				c.logger.Info("topic idle, consumer done", "consumed", consumed)
				return nil
			}
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}
		c.logger.Debug("message received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"value_size", len(msg.Value),
		)
		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			c.logger.Error("failed to process message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			return err
		}
		consumed++
		if c.deferred {
			c.hold(msg)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

func (c *Consumer) fetch(ctx context.Context) (kafka.Message, error) {
	if c.idleTimeout <= 0 {
		return c.reader.FetchMessage(ctx)
	}
	fetchCtx, cancel := context.WithTimeout(ctx, c.idleTimeout)
	defer cancel()
	return c.reader.FetchMessage(fetchCtx)
}

func (c *Consumer) hold(msg kafka.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[partitionKey{msg.Topic, msg.Partition}] = msg
}

// Commit commits the held messages of a deferred-commit consumer. Only the
// last message of each partition is sent since a commit covers every
// earlier offset.
func (c *Consumer) Commit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(c.pending))
	for _, m := range c.pending {
		msgs = append(msgs, m)
	}
	if err := c.reader.CommitMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("committing %d partitions: %w", len(msgs), err)
	}
	c.logger.Info("offsets committed", "partitions", len(msgs))
	clear(c.pending)
	return nil
}

// Pending reports how many partitions have handled but uncommitted
// messages.
func (c *Consumer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close closes the underlying Kafka reader. Held messages are dropped
// uncommitted.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
