package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/information-sharing-networks/ecommerce-api/internal/logger"
)

// RequestLogger returns a middleware that writes one access log line per request
// once the response is complete, e.g.
//
//	GET / 200 0.412 ms - 26
//
// It also stores a request-scoped logger in the context (see logger.ContextRequestLogger).
// Attributes added with logger.ContextWithLogAttrs are appended to the access log line.
func RequestLogger(baseLogger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqLogger := baseLogger
			if requestID := middleware.GetReqID(r.Context()); requestID != "" {
				reqLogger = baseLogger.With(slog.String("request_id", requestID))
			}
			ctx := logger.ContextWithRequestLogger(r.Context(), reqLogger)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				status := ww.Status()
				rec := recover()
				if rec != nil {
					status = http.StatusInternalServerError
				} else if status == 0 {
					// nothing written: net/http sends 200
					status = http.StatusOK
				}

				logRequest(ctx, r, reqLogger, status, ww.BytesWritten(), time.Since(start))

				if rec != nil {
					panic(rec)
				}
			}()

			next.ServeHTTP(ww, r.WithContext(ctx))
		})
	}
}

func logRequest(ctx context.Context, r *http.Request, reqLogger *slog.Logger, status, size int, elapsed time.Duration) {
	ms := float64(elapsed.Nanoseconds()) / float64(time.Millisecond)

	length := "-"
	if size > 0 {
		length = strconv.Itoa(size)
	}

	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("path", r.URL.RequestURI()),
		slog.Int("status", status),
		slog.Float64("duration_ms", ms),
		slog.Int("bytes", size),
	}
	attrs = append(attrs, logger.ContextLogAttrs(ctx)...)

	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}

	msg := fmt.Sprintf("%s %s %d %.3f ms - %s", r.Method, r.URL.RequestURI(), status, ms, length)
	reqLogger.LogAttrs(ctx, level, msg, attrs...)
}
