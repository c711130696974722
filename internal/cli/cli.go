// Package cli holds the flag handling and process plumbing shared by the
// command line tools.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/forum-search-index/internal/source"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/forum-search-index/pkg/logger"
	"github.com/spf13/pflag"
)

// CommonFlags are accepted by every tool. Flags override values from the
// config file and the environment.
type CommonFlags struct {
	ConfigPath    string
	LogLevel      string
	LogFormat     string
	SkipMalformed bool
	SkipHeader    bool
	Workers       int
}

// AddFlags registers the common flags on flagSet.
func (f *CommonFlags) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&f.ConfigPath, "config", "c", "", "path to YAML config file")
	flagSet.StringVar(&f.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flagSet.StringVar(&f.LogFormat, "log-format", "", "log format (text, json)")
	flagSet.BoolVar(&f.SkipMalformed, "skip-malformed", false, "skip malformed records instead of failing")
	flagSet.BoolVar(&f.SkipHeader, "skip-header", false, "treat the first input line as a header")
	flagSet.IntVarP(&f.Workers, "workers", "w", 0, "concurrent map workers (0 keeps the configured value)")
}

// Load reads the configuration, applies the flag overrides and installs the
// logger.
func (f *CommonFlags) Load(flagSet *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return nil, err
	}
	if f.LogLevel != "" {
		cfg.Logging.Level = f.LogLevel
	}
	if f.LogFormat != "" {
		cfg.Logging.Format = f.LogFormat
	}
	if flagSet.Changed("skip-malformed") {
		cfg.Pipeline.MalformedRecords = config.PolicyFail
		if f.SkipMalformed {
			cfg.Pipeline.MalformedRecords = config.PolicySkip
		}
	}
	if flagSet.Changed("skip-header") {
		cfg.Pipeline.SkipHeader = f.SkipHeader
	}
	if f.Workers > 0 {
		cfg.Pipeline.Workers = f.Workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

// Parse parses args into flagSet. It returns pflag.ErrHelp after printing
// usage when -h is given.
func Parse(flagSet *pflag.FlagSet, usage string, args []string) error {
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n\nFlags:\n%s", usage, flagSet.FlagUsages())
	}
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return err
		}
		return apperrors.Invalidf("%v", err)
	}
	return nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Sources maps positional arguments to sources. No arguments, or "-", mean
// stdin. A non-empty topic adds a Kafka source read until the topic is idle.
func Sources(args []string, cfg *config.Config, topic string) []source.Source {
	var sources []source.Source
	for _, arg := range args {
		if arg == "-" {
			sources = append(sources, source.NewStream("stdin", os.Stdin, cfg.Pipeline.SkipHeader))
			continue
		}
		sources = append(sources, source.NewFile(arg, cfg.Pipeline.SkipHeader))
	}
	if topic != "" {
		sources = append(sources, source.NewKafka(topic, func(h kafka.MessageHandler, opts ...kafka.ConsumerOption) *kafka.Consumer {
			return kafka.NewConsumer(cfg.Kafka, topic, h, opts...)
		}))
	}
	if len(sources) == 0 {
		sources = append(sources, source.NewStream("stdin", os.Stdin, cfg.Pipeline.SkipHeader))
	}
	return sources
}

// Exit logs err and terminates the process with the matching exit code.
func Exit(err error) {
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(apperrors.ExitOK)
	}
	code := apperrors.ExitCode(err)
	if err != nil {
		slog.Error("run failed", "error", err, "exit_code", code)
	}
	os.Exit(code)
}
