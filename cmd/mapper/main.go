// Command mapper reads forum records and writes one "term\tid" line per
// term occurrence to stdout.
package main

import (
	"log/slog"
	"os"

	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/cli"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/metrics"
	"github.com/spf13/pflag"
)

const usage = `Usage: mapper [flags] [file ...]

Reads tab-delimited forum records from the named files (plain, .gz or .zst)
or from stdin, and writes term<TAB>id pairs to stdout. Pass --skip-header
for dumps that start with a column header row.`

func main() {
	cli.Exit(run())
}

func run() error {
	var flags cli.CommonFlags
	flagSet := pflag.NewFlagSet("mapper", pflag.ContinueOnError)
	flags.AddFlags(flagSet)
	if err := cli.Parse(flagSet, usage, os.Args[1:]); err != nil {
		return err
	}
	cfg, err := flags.Load(flagSet)
	if err != nil {
		return err
	}
	ctx, stop := cli.SignalContext()
	defer stop()

	engine, err := pipeline.FromConfig(cfg, metrics.New(nil))
	if err != nil {
		return err
	}
	var total pipeline.Stats
	for _, src := range cli.Sources(flagSet.Args(), cfg, "") {
		stats, err := engine.MapSource(ctx, src, os.Stdout)
		total.Records += stats.Records
		total.Malformed += stats.Malformed
		total.Occurrences += stats.Occurrences
		if err != nil {
			return err
		}
	}
	slog.Info("map complete",
		"records", total.Records,
		"malformed", total.Malformed,
		"occurrences", total.Occurrences,
	)
	return nil
}
