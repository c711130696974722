package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/forum"
	apperrors "github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/kafka"
)

// ConsumerFactory builds a consumer delivering messages to handler.
type ConsumerFactory func(handler kafka.MessageHandler, opts ...kafka.ConsumerOption) *kafka.Consumer

// Kafka reads one record per message value from a topic until the topic
// goes idle. Offsets are not committed by Read; call Commit once the index
// built from the records is durable, then Close.
type Kafka struct {
	topic       string
	newConsumer ConsumerFactory

	mu       sync.Mutex
	consumer *kafka.Consumer
}

// NewKafka returns a source over topic.
func NewKafka(topic string, newConsumer ConsumerFactory) *Kafka {
	return &Kafka{topic: topic, newConsumer: newConsumer}
}

func (k *Kafka) Name() string { return "kafka:" + k.topic }

func (k *Kafka) Read(ctx context.Context, fn RecordFunc) error {
	consumer := k.newConsumer(func(ctx context.Context, _ []byte, value []byte) error {
		rec, err := forum.NewReader(bytes.NewReader(value), false).Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if !errors.Is(err, apperrors.ErrMalformedRecord) {
				err = apperrors.NewMalformedRecord(0, forum.NumFields, err.Error())
			}
			return fn(forum.Record{}, err)
		}
		return fn(rec, nil)
	}, kafka.WithDeferredCommit())
	k.mu.Lock()
	k.consumer = consumer
	k.mu.Unlock()
	return consumer.Start(ctx)
}

// Commit acknowledges every record delivered by Read.
func (k *Kafka) Commit(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.consumer == nil {
		return nil
	}
	return k.consumer.Commit(ctx)
}

// Close releases the consumer. Uncommitted records are redelivered to the
// next run of the consumer group.
func (k *Kafka) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.consumer == nil {
		return nil
	}
	err := k.consumer.Close()
	k.consumer = nil
	return err
}
