package hamlsh

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with hamlsh-specific context.
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
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithK adds a k (neighbour count) field to the logger.
func (l *Logger) WithK(k int) *Logger {
	return &Logger{
		Logger: l.Logger.With("k", k),
	}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogBuild logs the derived parameters of a new index.
func (l *Logger) LogBuild(ctx context.Context, idx *Index) {
	l.InfoContext(ctx, "index built",
		"size", idx.Size(),
		"dimension", idx.Dimensions(),
		"replicas", idx.Replicas(),
		"hash_bits", idx.HashBits(),
		"hash_groups", idx.HashGroups(),
		"storage_size", idx.StorageSize(),
		"r1", idx.R1(),
		"r2", idx.R2(),
		"p1", idx.P1(),
		"p2", idx.P2(),
	)
}

// LogFit logs a fit operation. Dropped band insertions are expected under
// the lossy bucket policy and are reported at debug level.
func (l *Logger) LogFit(ctx context.Context, points, dropped int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "fit failed",
			"points", points,
			"error", err,
		)
		return
	}

	l.InfoContext(ctx, "fit completed",
		"points", points,
		"duration", duration,
	)
	if dropped > 0 {
		l.DebugContext(ctx, "bucket overflow",
			"dropped", dropped,
		)
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, k, candidates, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"k", k,
			"candidates", candidates,
			"results", resultsFound,
		)
	}
}
