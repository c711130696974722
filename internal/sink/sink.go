// Package sink delivers finished index entries to their destination: a
// tab-delimited stream, a segment file, or a Postgres, Redis or Kafka store.
package sink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/resilience"
)

// Sink receives entries in aggregator order. Close flushes anything
// buffered and releases the destination.
type Sink interface {
	Write(ctx context.Context, e index.Entry) error
	Close(ctx context.Context) error
}

// Pinger is implemented by sinks backed by a network store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Aborter is implemented by sinks that can drop a partial run instead of
// committing it.
type Aborter interface {
	Abort()
}

// Discard releases s after a failed or cancelled run. Sinks implementing
// Aborter are aborted; the rest are closed so buffered entries are not lost.
func Discard(ctx context.Context, s Sink) error {
	if a, ok := s.(Aborter); ok {
		a.Abort()
		return nil
	}
	return s.Close(ctx)
}

// Open builds the sink selected by cfg.Sink.Type. stdout is used by the
// text sink when the configured path is "-".
func Open(ctx context.Context, cfg *config.Config, m *metrics.Metrics, stdout io.Writer) (Sink, error) {
	switch cfg.Sink.Type {
	case config.SinkText:
		if cfg.Sink.Path == "" || cfg.Sink.Path == "-" {
			return NewText(stdout, nil), nil
		}
		f, err := os.Create(cfg.Sink.Path)
		if err != nil {
			return nil, fmt.Errorf("creating output file: %w", err)
		}
		return NewText(f, f), nil
	case config.SinkSegment:
		return NewSegment(cfg.Sink.Path)
	case config.SinkPostgres:
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrSinkUnavailable, err)
		}
		return NewPostgres(ctx, db, cfg.Sink.BatchSize, resilience.FromConfig(cfg.Retry), m)
	case config.SinkRedis:
		client, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrSinkUnavailable, err)
		}
		return NewRedis(client, cfg.Redis, cfg.Sink.BatchSize, resilience.FromConfig(cfg.Retry), m), nil
	case config.SinkKafka:
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexEntries)
		return NewKafka(producer, cfg.Sink.BatchSize, resilience.FromConfig(cfg.Retry), m), nil
	default:
		return nil, apperrors.Invalidf("unknown sink type %q", cfg.Sink.Type)
	}
}

// batcher buffers entries and hands full batches to flushFn under retry.
type batcher struct {
	name    string
	size    int
	buf     []index.Entry
	flushFn func(ctx context.Context, batch []index.Entry) error
	closeFn func() error
	pingFn  func(context.Context) error
	retry   resilience.RetryConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
	written int
}

func newBatcher(name string, size int, retry resilience.RetryConfig, m *metrics.Metrics,
	flushFn func(context.Context, []index.Entry) error, closeFn func() error) *batcher {
	if size <= 0 {
		size = 1
	}
	return &batcher{
		name:    name,
		size:    size,
		buf:     make([]index.Entry, 0, size),
		flushFn: flushFn,
		closeFn: closeFn,
		retry:   retry,
		metrics: m,
		logger:  slog.Default().With("component", name+"-sink"),
	}
}

func (b *batcher) withPing(fn func(context.Context) error) *batcher {
	b.pingFn = fn
	return b
}

// Ping probes the destination. Sinks without a probe report healthy.
func (b *batcher) Ping(ctx context.Context) error {
	if b.pingFn == nil {
		return nil
	}
	return b.pingFn(ctx)
}

func (b *batcher) Write(ctx context.Context, e index.Entry) error {
	b.buf = append(b.buf, e)
	if len(b.buf) >= b.size {
		return b.flush(ctx)
	}
	return nil
}

func (b *batcher) flush(ctx context.Context) error {
	if len(b.buf) == 0 {
		return nil
	}
	batch := b.buf
	err := resilience.Retry(ctx, b.name+"-sink-flush", b.retry, func() error {
		return b.flushFn(ctx, batch)
	})
	if b.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		b.metrics.SinkWritesTotal.WithLabelValues(b.name, status).Inc()
	}
	if err != nil {
		return fmt.Errorf("flushing %d entries to %s: %w", len(batch), b.name, err)
	}
	b.written += len(batch)
	b.buf = make([]index.Entry, 0, b.size)
	b.logger.Debug("batch written", "entries", len(batch), "total", b.written)
	return nil
}

func (b *batcher) Close(ctx context.Context) error {
	flushErr := b.flush(ctx)
	var closeErr error
	if b.closeFn != nil {
		closeErr = b.closeFn()
	}
	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil {
		return fmt.Errorf("closing %s sink: %w", b.name, closeErr)
	}
	b.logger.Info("sink closed", "entries", b.written)
	return nil
}
