// Package logger configures the process-wide slog logger and carries
// request-scoped loggers through context.
//
// In dev and test environments log lines are colourised with tint; in prod and
// staging they are emitted as JSON so they can be shipped to a log aggregator.
//
// Middleware that wants to contribute to the final request log line (written by
// the request logging middleware once the response is complete) calls
// ContextWithLogAttrs with the request context.
package logger

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// LevelNone is above every level slog emits, so a logger set to it is silent.
const LevelNone = slog.Level(100)

// InitLogger creates the application logger, installs it as the slog default
// and redirects the standard library log package into it.
func InitLogger(level slog.Level, environment string) *slog.Logger {
	return initLogger(os.Stdout, level, environment)
}

func initLogger(w io.Writer, level slog.Level, environment string) *slog.Logger {
	logger := slog.New(NewHandler(w, level, environment))
	slog.SetDefault(logger)

	log.SetFlags(0)
	log.SetOutput(slog.NewLogLogger(logger.Handler(), slog.LevelInfo).Writer())

	return logger
}

// NewHandler returns the slog handler used for the given environment.
func NewHandler(w io.Writer, level slog.Level, environment string) slog.Handler {
	if environment == "prod" || environment == "staging" {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey && len(groups) == 0 {
					return slog.String("ts", a.Value.Time().UTC().Format(time.RFC3339Nano))
				}
				return a
			},
		})
	}

	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    environment == "test",
	})
}

// ParseLogLevel maps a LOG_LEVEL value to a slog level. Unknown values fall back to info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none":
		return LevelNone
	default:
		return slog.LevelInfo
	}
}

type requestLoggerKey struct{}

type logAttrsKey struct{}

// logAttrs collects attributes added during a request.
type logAttrs struct {
	mu    sync.Mutex
	attrs []slog.Attr
}

// ContextWithRequestLogger stores a request-scoped logger and an empty attribute
// collector in ctx. The request logging middleware calls this once per request.
func ContextWithRequestLogger(ctx context.Context, logger *slog.Logger) context.Context {
	ctx = context.WithValue(ctx, requestLoggerKey{}, logger)
	return context.WithValue(ctx, logAttrsKey{}, &logAttrs{})
}

// ContextRequestLogger returns the request-scoped logger, or the default logger
// when the context was not prepared by the request logging middleware.
func ContextRequestLogger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(requestLoggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// ContextWithLogAttrs adds attributes to the final request log line.
// It is a no-op when ctx has no attribute collector.
func ContextWithLogAttrs(ctx context.Context, attrs ...slog.Attr) {
	collector, ok := ctx.Value(logAttrsKey{}).(*logAttrs)
	if !ok {
		return
	}
	collector.mu.Lock()
	defer collector.mu.Unlock()
	collector.attrs = append(collector.attrs, attrs...)
}

// ContextLogAttrs returns a copy of the attributes added with ContextWithLogAttrs.
func ContextLogAttrs(ctx context.Context) []slog.Attr {
	collector, ok := ctx.Value(logAttrsKey{}).(*logAttrs)
	if !ok {
		return nil
	}
	collector.mu.Lock()
	defer collector.mu.Unlock()
	return append([]slog.Attr(nil), collector.attrs...)
}
