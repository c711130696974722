package sink

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/resilience"
)

// BulkSetter is the part of the Redis client used by the redis sink.
type BulkSetter interface {
	SetMany(ctx context.Context, kvs []pkgredis.KV, ttl time.Duration) error
	Close() error
}

// NewRedis stores each entry as prefix+term -> "id1,id2,...".
func NewRedis(client BulkSetter, cfg config.RedisConfig, batchSize int, retry resilience.RetryConfig, m *metrics.Metrics) Sink {
	flush := func(ctx context.Context, batch []index.Entry) error {
		kvs := make([]pkgredis.KV, len(batch))
		for i, e := range batch {
			kvs[i] = pkgredis.KV{
				Key:   cfg.KeyPrefix + e.Term,
				Value: string(index.AppendIDs(nil, e.RecordIDs)),
			}
		}
		return client.SetMany(ctx, kvs, cfg.EntryTTL)
	}
	b := newBatcher("redis", batchSize, retry, m, flush, client.Close)
	if p, ok := client.(Pinger); ok {
		b.withPing(p.Ping)
	}
	return b
}
