// Package logger configures the process-wide slog logger. Output goes to
// stderr because stdout carries the data stream of the mapper and reducer.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type contextKey struct{}

// Setup installs a default logger writing to stderr.
func Setup(level string, format string) {
	SetupWriter(os.Stderr, level, format)
}

// SetupWriter installs a default logger writing to w.
func SetupWriter(w io.Writer, level string, format string) {
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// WithInput tags ctx with the name of the input shard being processed.
func WithInput(ctx context.Context, input string) context.Context {
	return context.WithValue(ctx, contextKey{}, input)
}

func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if input, ok := ctx.Value(contextKey{}).(string); ok {
		logger = logger.With("input", input)
	}
	return logger
}

func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
