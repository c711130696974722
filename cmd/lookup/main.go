// Command lookup prints the record ids indexed for each query term in a
// segment file.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/cli"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/logger"
	"github.com/spf13/pflag"
)

const usage = `Usage: lookup (--segment FILE | --dir DIR) [--all] [term ...]

Terms are normalized the same way record bodies are. Terms with no postings
print an empty id list.`

func main() {
	cli.Exit(run())
}

func run() error {
	var (
		segPath  string
		dir      string
		all      bool
		logLevel string
	)
	flagSet := pflag.NewFlagSet("lookup", pflag.ContinueOnError)
	flagSet.StringVarP(&segPath, "segment", "s", "", "segment file to query")
	flagSet.StringVarP(&dir, "dir", "d", "", "segment directory; postings are merged across its segments")
	flagSet.BoolVar(&all, "all", false, "dump every entry of the segment")
	flagSet.StringVar(&logLevel, "log-level", "warn", "log level")
	if err := cli.Parse(flagSet, usage, os.Args[1:]); err != nil {
		return err
	}
	logger.Setup(logLevel, "text")
	if (segPath == "") == (dir == "") {
		return apperrors.Invalidf("exactly one of --segment or --dir is required")
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	if dir != "" {
		if all {
			return apperrors.Invalidf("--all needs --segment")
		}
		catalog, err := segment.OpenCatalog(dir)
		if err != nil {
			return err
		}
		defer catalog.Close()
		return printTerms(out, flagSet.Args(), catalog.Lookup)
	}

	r, err := segment.OpenReader(segPath)
	if err != nil {
		return err
	}
	defer r.Close()
	if all {
		for entry, err := range r.Entries() {
			if err != nil {
				return err
			}
			fmt.Fprintln(out, index.FormatEntry(entry))
		}
		return nil
	}
	return printTerms(out, flagSet.Args(), r.Lookup)
}

func printTerms(w io.Writer, args []string, lookup func(string) ([]int64, error)) error {
	for _, arg := range args {
		term := tokenizer.Normalize(arg)
		ids, err := lookup(term)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, index.FormatEntry(index.Entry{Term: term, RecordIDs: ids}))
	}
	return nil
}
