// Command reducer reads term-sorted "term\tid" pairs from stdin and writes
// one "term\tid1,id2,..." entry per term to stdout.
package main

import (
	"log/slog"
	"os"

	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/cli"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/metrics"
	"github.com/spf13/pflag"
)

const usage = `Usage: reducer [flags] < pairs

Input must be sorted by term, for example with "LC_ALL=C sort -s -t$'\t' -k1,1".
Malformed lines are skipped.`

func main() {
	cli.Exit(run())
}

func run() error {
	var flags cli.CommonFlags
	var orderCheck string
	flagSet := pflag.NewFlagSet("reducer", pflag.ContinueOnError)
	flags.AddFlags(flagSet)
	flagSet.StringVar(&orderCheck, "order-check", "", "sort order check (off, warn, fail)")
	if err := cli.Parse(flagSet, usage, os.Args[1:]); err != nil {
		return err
	}
	cfg, err := flags.Load(flagSet)
	if err != nil {
		return err
	}
	if orderCheck != "" {
		cfg.Aggregator.OrderCheck = orderCheck
	}
	ctx, stop := cli.SignalContext()
	defer stop()

	engine, err := pipeline.FromConfig(cfg, metrics.New(nil))
	if err != nil {
		return err
	}
	stats, err := engine.Reduce(ctx, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	slog.Info("reduce complete",
		"entries", stats.Entries,
		"pairs_skipped", stats.PairsSkipped,
		"order_violations", stats.Violations,
	)
	return nil
}
