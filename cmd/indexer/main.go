// Command indexer runs the whole index build in process: it tokenizes the
// inputs concurrently, sorts, aggregates and writes entries to the
// configured sink.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/cli"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/sink"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/metrics"
	"github.com/spf13/pflag"
)

const usage = `Usage: indexer [flags] [file ...]

Builds an inverted index from forum record dumps (plain, .gz or .zst files,
or stdin) and, with --kafka, from the configured forum records topic. Pass
--skip-header for dumps that start with a column header row. Kafka offsets
are committed only after the sink is closed.`

func main() {
	cli.Exit(run())
}

func run() error {
	var flags cli.CommonFlags
	var (
		sinkType   string
		sinkPath   string
		shuffle    string
		fromKafka  bool
		orderCheck string
	)
	flagSet := pflag.NewFlagSet("indexer", pflag.ContinueOnError)
	flags.AddFlags(flagSet)
	flagSet.StringVar(&sinkType, "sink", "", "sink type (text, segment, postgres, redis, kafka)")
	flagSet.StringVarP(&sinkPath, "output", "o", "", "text output file or segment directory")
	flagSet.StringVar(&shuffle, "shuffle", "", "shuffle mode (memory, external)")
	flagSet.BoolVar(&fromKafka, "kafka", false, "also consume records from the forum records topic")
	flagSet.StringVar(&orderCheck, "order-check", "", "sort order check (off, warn, fail)")
	if err := cli.Parse(flagSet, usage, os.Args[1:]); err != nil {
		return err
	}
	cfg, err := flags.Load(flagSet)
	if err != nil {
		return err
	}
	if sinkType != "" {
		cfg.Sink.Type = sinkType
	}
	if sinkPath != "" {
		cfg.Sink.Path = sinkPath
	}
	if shuffle != "" {
		cfg.Shuffle.Mode = shuffle
	}
	if orderCheck != "" {
		cfg.Aggregator.OrderCheck = orderCheck
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	m := metrics.New(nil)
	engine, err := pipeline.FromConfig(cfg, m)
	if err != nil {
		return err
	}
	dst, err := sink.Open(ctx, cfg, m, os.Stdout)
	if err != nil {
		return err
	}

	checker := health.NewChecker(5 * time.Second)
	if p, ok := dst.(sink.Pinger); ok {
		checker.Register(cfg.Sink.Type, p.Ping)
	}
	if err := checker.Run(ctx).Err(); err != nil {
		sink.Discard(context.Background(), dst)
		return err
	}
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, m, checker.Handler())
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(shutdownCtx)
		}()
	}

	topic := ""
	if fromKafka {
		topic = cfg.Kafka.Topics.ForumRecords
	}
	sources := cli.Sources(flagSet.Args(), cfg, topic)
	slog.Info("starting index build",
		"sources", len(sources),
		"workers", cfg.Pipeline.Workers,
		"shuffle", cfg.Shuffle.Mode,
		"sink", cfg.Sink.Type,
	)
	stats, err := engine.Run(ctx, sources, dst)
	if err := engine.Finish(ctx, dst, sources, err); err != nil {
		return err
	}
	slog.Info("index build complete",
		"records", stats.Records,
		"malformed", stats.Malformed,
		"occurrences", stats.Occurrences,
		"entries", stats.Entries,
		"duration", stats.Duration,
	)
	return nil
}
