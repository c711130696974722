// Package pipeline wires the index build stages together. Map and Reduce are
// the two halves of the streaming job, connected by an external sort; Run
// executes the whole job in process, from sources to a sink.
package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/forum"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/indexer/aggregator"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/indexer/shuffle"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/sink"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/source"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Options configures an Engine.
type Options struct {
	Tokenizer     *tokenizer.Tokenizer
	Workers       int
	SkipMalformed bool
	SkipHeader    bool
	OrderCheck    aggregator.OrderCheck
	Metrics       *metrics.Metrics
	// NewSorter builds the shuffle of each Run. Defaults to a MemorySorter.
	NewSorter func() (shuffle.Sorter, error)
}

// Stats summarizes one stage or run.
type Stats struct {
	Records      int64
	Malformed    int64
	Occurrences  int64
	PairsSkipped int64
	Entries      int64
	Violations   int64
	Duration     time.Duration
}

// Engine runs the map, reduce and full index jobs.
type Engine struct {
	opts   Options
	logger *slog.Logger
}

// New fills in defaults for unset options.
func New(opts Options) *Engine {
	if opts.Tokenizer == nil {
		opts.Tokenizer = tokenizer.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
	if opts.NewSorter == nil {
		opts.NewSorter = func() (shuffle.Sorter, error) { return shuffle.NewMemorySorter(), nil }
	}
	return &Engine{opts: opts, logger: logger.WithComponent("pipeline")}
}

// FromConfig builds an Engine from the loaded configuration.
func FromConfig(cfg *config.Config, m *metrics.Metrics) (*Engine, error) {
	if m == nil {
		m = metrics.New(nil)
	}
	check, err := aggregator.ParseOrderCheck(cfg.Aggregator.OrderCheck)
	if err != nil {
		return nil, err
	}
	codec, err := shuffle.ParseCodec(cfg.Shuffle.Compression)
	if err != nil {
		return nil, err
	}
	opts := Options{
		Workers:       cfg.Pipeline.Workers,
		SkipMalformed: cfg.Pipeline.MalformedRecords == config.PolicySkip,
		SkipHeader:    cfg.Pipeline.SkipHeader,
		OrderCheck:    check,
		Metrics:       m,
	}
	if cfg.Shuffle.Mode == config.ShuffleExternal {
		opts.NewSorter = func() (shuffle.Sorter, error) {
			return shuffle.NewExternalSorter(cfg.Shuffle.TempDir, cfg.Shuffle.RunSize, codec,
				shuffle.WithSpillHook(func(int) { m.SpillRunsTotal.Inc() }))
		}
	}
	return New(opts), nil
}

// counters is shared by the map workers of one run.
type counters struct {
	records     atomic.Int64
	malformed   atomic.Int64
	occurrences atomic.Int64
}

// tokenize turns one source into occurrences handed to add.
func (e *Engine) tokenize(ctx context.Context, src source.Source, c *counters, add func(index.Occurrence) error) error {
	log := logger.FromContext(ctx)
	return src.Read(ctx, func(rec forum.Record, malformed error) error {
		var occs iter.Seq[index.Occurrence]
		if malformed == nil {
			seq, err := e.opts.Tokenizer.Occurrences(rec)
			if err != nil {
				malformed = err
			} else {
				occs = seq
			}
		}
		if malformed != nil {
			c.malformed.Add(1)
			e.opts.Metrics.RecordsTotal.WithLabelValues("malformed").Inc()
			if !e.opts.SkipMalformed {
				return malformed
			}
			log.Warn("skipping malformed record", "error", malformed)
			return nil
		}
		c.records.Add(1)
		e.opts.Metrics.RecordsTotal.WithLabelValues("ok").Inc()
		var n int64
		for o := range occs {
			if err := add(o); err != nil {
				return err
			}
			n++
		}
		c.occurrences.Add(n)
		e.opts.Metrics.OccurrencesTotal.Add(float64(n))
		return nil
	})
}

// Map reads forum records from r and writes one "term\tid" line per
// occurrence to w, in input order.
func (e *Engine) Map(ctx context.Context, r io.Reader, w io.Writer) (Stats, error) {
	return e.MapSource(ctx, source.NewStream("stdin", r, e.opts.SkipHeader), w)
}

// MapSource is Map over an arbitrary source.
func (e *Engine) MapSource(ctx context.Context, src source.Source, w io.Writer) (Stats, error) {
	start := time.Now()
	bw := bufio.NewWriterSize(w, 64<<10)
	var c counters
	var line []byte
	err := e.tokenize(logger.WithInput(ctx, src.Name()), src, &c, func(o index.Occurrence) error {
		line = index.AppendOccurrence(line[:0], o)
		line = append(line, '\n')
		_, err := bw.Write(line)
		return err
	})
	if ferr := bw.Flush(); err == nil && ferr != nil {
		err = fmt.Errorf("flushing map output: %w", ferr)
	}
	stats := Stats{
		Records:     c.records.Load(),
		Malformed:   c.malformed.Load(),
		Occurrences: c.occurrences.Load(),
		Duration:    time.Since(start),
	}
	e.observe("map", stats.Duration)
	return stats, err
}

// Reduce reads term-sorted "term\tid" lines from r and writes one
// "term\tid1,id2,..." entry per term to w. Malformed lines are skipped and
// counted. Blank lines are ignored.
func (e *Engine) Reduce(ctx context.Context, r io.Reader, w io.Writer) (Stats, error) {
	start := time.Now()
	text := sink.NewText(w, nil)
	var stats Stats
	agg := aggregator.New(func(entry index.Entry) error {
		e.countEntry(entry)
		return text.Write(ctx, entry)
	}, e.opts.OrderCheck)

	err := e.reduceLines(ctx, r, agg, &stats)
	if err == nil {
		err = agg.Close()
	} else {
		agg.Reset()
	}
	if cerr := text.Close(ctx); err == nil && cerr != nil {
		err = cerr
	}
	stats.Entries = int64(agg.Entries())
	stats.Violations = int64(agg.Violations())
	stats.Duration = time.Since(start)
	e.opts.Metrics.OrderViolationTotal.Add(float64(stats.Violations))
	e.observe("reduce", stats.Duration)
	return stats, err
}

// MaxPairLine is the longest reducer input line accepted. Longer lines are
// skipped as malformed pairs.
const MaxPairLine = 1 << 20

func (e *Engine) reduceLines(ctx context.Context, r io.Reader, agg *aggregator.Aggregator, stats *Stats) error {
	br := bufio.NewReaderSize(r, 64<<10)
	var line []byte
	for lineNum := 1; ; lineNum++ {
		if lineNum%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		var (
			oversize bool
			err      error
		)
		line, oversize, err = readLine(br, line[:0])
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading pairs: %w", err)
		}
		eof := err != nil
		if eof && len(line) == 0 && !oversize {
			break
		}
		if oversize {
			e.skipPair(stats, &apperrors.MalformedPairError{
				Line:   lineNum,
				Raw:    string(line[:64]),
				Reason: fmt.Sprintf("line too long (limit %d bytes)", MaxPairLine),
			})
		} else if !isBlank(string(line)) {
			o, perr := index.ParseOccurrence(string(line), lineNum)
			switch {
			case errors.Is(perr, apperrors.ErrMalformedPair):
				e.skipPair(stats, perr)
			case perr != nil:
				return perr
			default:
				stats.Occurrences++
				if err := agg.Add(o); err != nil {
					return err
				}
			}
		}
		if eof {
			break
		}
	}
	return ctx.Err()
}

func (e *Engine) skipPair(stats *Stats, err error) {
	stats.PairsSkipped++
	e.opts.Metrics.PairsSkippedTotal.Inc()
	e.logger.Debug("skipping malformed pair", "error", err)
}

// readLine appends the next line of br to dst without its newline. Past
// MaxPairLine the rest of the line is drained and oversize is set; dst then
// holds the first MaxPairLine bytes. err is io.EOF on the last line.
func readLine(br *bufio.Reader, dst []byte) (line []byte, oversize bool, err error) {
	for {
		chunk, err := br.ReadSlice('\n')
		if !oversize {
			if len(dst)+len(chunk) > MaxPairLine {
				dst = append(dst, chunk[:MaxPairLine-len(dst)]...)
				oversize = true
			} else {
				dst = append(dst, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if n := len(dst); !oversize && n > 0 && dst[n-1] == '\n' {
			dst = dst[:n-1]
		}
		return dst, oversize, err
	}
}

// Finish completes a Run over sources into dst. After a failed run dst is
// discarded and runErr returned. Otherwise dst is closed, and only once that
// succeeds are the sources that track a consumed position committed.
// Sources are closed either way.
func (e *Engine) Finish(ctx context.Context, dst sink.Sink, sources []source.Source, runErr error) error {
	defer func() {
		if err := source.CloseAll(sources); err != nil {
			e.logger.Error("closing sources", "error", err)
		}
	}()
	if runErr != nil {
		if err := sink.Discard(context.Background(), dst); err != nil {
			e.logger.Error("discarding sink", "error", err)
		}
		return runErr
	}
	if err := dst.Close(ctx); err != nil {
		return fmt.Errorf("closing sink: %w", err)
	}
	return source.CommitAll(ctx, sources)
}

// Run tokenizes every source concurrently, sorts the occurrences and writes
// the aggregated entries to dst. dst is not closed. On error or cancellation
// the open accumulator is discarded and nothing more is written.
func (e *Engine) Run(ctx context.Context, sources []source.Source, dst sink.Sink) (Stats, error) {
	start := time.Now()
	sorter, err := e.opts.NewSorter()
	if err != nil {
		return Stats{}, fmt.Errorf("creating sorter: %w", err)
	}
	defer sorter.Close()

	var c counters
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for _, src := range sources {
		g.Go(func() error {
			sctx := logger.WithInput(gctx, src.Name())
			logger.FromContext(sctx).Debug("map started")
			if err := e.tokenize(sctx, src, &c, sorter.Add); err != nil {
				return fmt.Errorf("mapping %s: %w", src.Name(), err)
			}
			return nil
		})
	}
	mapErr := g.Wait()
	stats := Stats{
		Records:     c.records.Load(),
		Malformed:   c.malformed.Load(),
		Occurrences: c.occurrences.Load(),
	}
	e.observe("map", time.Since(start))
	if mapErr != nil {
		stats.Duration = time.Since(start)
		return stats, mapErr
	}
	e.logger.Info("map stage complete",
		"sources", len(sources),
		"records", stats.Records,
		"malformed", stats.Malformed,
		"occurrences", stats.Occurrences,
	)

	reduceStart := time.Now()
	agg := aggregator.New(func(entry index.Entry) error {
		e.countEntry(entry)
		return dst.Write(ctx, entry)
	}, e.opts.OrderCheck)
	err = sorter.Drain(ctx, agg.Add)
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		err = agg.Close()
	} else {
		agg.Reset()
	}
	stats.Entries = int64(agg.Entries())
	stats.Violations = int64(agg.Violations())
	stats.Duration = time.Since(start)
	e.opts.Metrics.OrderViolationTotal.Add(float64(stats.Violations))
	e.observe("reduce", time.Since(reduceStart))
	if err != nil {
		return stats, err
	}
	e.logger.Info("index run complete",
		"entries", stats.Entries,
		"duration", stats.Duration,
	)
	return stats, nil
}

func (e *Engine) countEntry(entry index.Entry) {
	e.opts.Metrics.EntriesTotal.Inc()
	e.opts.Metrics.EntryIDsCount.Observe(float64(entry.DocFreq()))
}

func (e *Engine) observe(stage string, d time.Duration) {
	e.opts.Metrics.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func isBlank(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\r', '\n', '\v', '\f':
		default:
			return false
		}
	}
	return true
}
