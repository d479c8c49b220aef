package corels

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with corels-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithRun adds a run name field to the logger.
func (l *Logger) WithRun(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("run", name),
	}
}

// WithDataset adds the dataset shape to the logger.
func (l *Logger) WithDataset(ndata, nrules int) *Logger {
	return &Logger{
		Logger: l.Logger.With("ndata", ndata, "nrules", nrules),
	}
}

// LogLayer logs a finished layer.
func (l *Logger) LogLayer(ctx context.Context, s LayerStats) {
	l.InfoContext(ctx, "layer completed",
		"length", s.Length,
		"retained", s.Retained,
		"captured_zero", s.CapturedZero,
		"dead_prefix", s.DeadPrefix,
		"inferior", s.Inferior,
		"dead_prefix_start", s.DeadPrefixStart,
		"stunted", s.Stunted,
		"deferred", s.Deferred,
		"duration", s.Duration,
	)
}

// LogIncumbent logs a raised incumbent.
func (l *Logger) LogIncumbent(ctx context.Context, accuracy float64, prefix []int) {
	l.InfoContext(ctx, "new best rule list",
		"accuracy", accuracy,
		"prefix", prefix,
	)
}

// LogRun logs the end of a search.
func (l *Logger) LogRun(ctx context.Context, res *Result, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"error", err,
		)
		return
	}
	if res.Truncated {
		l.WarnContext(ctx, "search truncated by node or memory ceiling",
			"accuracy", res.Accuracy,
			"prefix", res.Prefix,
			"cache_size", res.CacheSize,
		)
		return
	}
	l.InfoContext(ctx, "search completed",
		"accuracy", res.Accuracy,
		"prefix", res.Prefix,
		"layers", len(res.Layers),
		"cache_size", res.CacheSize,
		"duration", res.Duration,
	)
}

// LogSave logs a persisted run.
func (l *Logger) LogSave(ctx context.Context, name string, rows int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "saving run failed",
			"run", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "run saved",
			"run", name,
			"rows", rows,
		)
	}
}
