package store

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/tracelog"
)

// slogTracer bridges pgx's tracelog output into slog so every statement,
// its args and its duration are visible without a separate log stream.
type slogTracer struct {
	logger *slog.Logger
}

// newQueryTracer returns a pgx tracer that logs all SQL through the given
// logger. If logger is nil, slog.Default() is used.
func newQueryTracer(logger *slog.Logger) *tracelog.TraceLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &tracelog.TraceLog{
		Logger:   &slogTracer{logger: logger},
		LogLevel: tracelog.LogLevelDebug,
	}
}

// Log implements tracelog.Logger.
func (t *slogTracer) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	attrs := make([]slog.Attr, 0, len(data))
	for k, v := range data {
		attrs = append(attrs, slog.Any(k, v))
	}
	t.logger.LogAttrs(ctx, slogLevel(level), msg, attrs...)
}

func slogLevel(level tracelog.LogLevel) slog.Level {
	switch level {
	case tracelog.LogLevelTrace, tracelog.LogLevelDebug:
		return slog.LevelDebug
	case tracelog.LogLevelInfo:
		return slog.LevelInfo
	case tracelog.LogLevelWarn:
		return slog.LevelWarn
	case tracelog.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
