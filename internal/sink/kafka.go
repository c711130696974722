package sink

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/resilience"
)

// NewKafka publishes each entry as a JSON event keyed by term, so all
// updates of a term land on the same partition.
func NewKafka(producer *kafka.Producer, batchSize int, retry resilience.RetryConfig, m *metrics.Metrics) Sink {
	flush := func(ctx context.Context, batch []index.Entry) error {
		events := make([]kafka.Event, len(batch))
		for i, e := range batch {
			events[i] = kafka.Event{Key: e.Term, Value: e}
		}
		return producer.PublishBatch(ctx, events)
	}
	return newBatcher("kafka", batchSize, retry, m, flush, producer.Close).withPing(producer.Ping)
}
