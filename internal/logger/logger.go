// Package logger configures the process-wide structured logger and carries
// request-scoped loggers through context so every line emitted while serving
// a request shares its req_id and caller.
package logger

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

var log *slog.Logger

func init() {
	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: levelFromEnv(),
	}))
	// Code using slog directly gets the same JSON output.
	slog.SetDefault(log)
}

// levelFromEnv reads LOG_LEVEL (debug, info, warn, error; case-insensitive),
// defaulting to info.
func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Info logs an informational message with structured fields
func Info(msg string, args ...any) {
	log.Info(msg, args...)
}

// Warn logs a warning message with structured fields
func Warn(msg string, args ...any) {
	log.Warn(msg, args...)
}

// Error logs an error message with structured fields
func Error(msg string, args ...any) {
	log.Error(msg, args...)
}

// Fatal logs an error message and exits with status 1
func Fatal(msg string, args ...any) {
	log.Error(msg, args...)
	os.Exit(1)
}

type ctxKey struct{}

// Middleware stores a logger tagged with the request id in the request
// context. Must run after chi's RequestID middleware.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqLog := log
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			reqLog = reqLog.With("req_id", reqID)
		}
		next.ServeHTTP(w, r.WithContext(WithLogger(r.Context(), reqLog)))
	})
}

// Ctx returns the request-scoped logger, or the process logger when the
// context carries none.
func Ctx(ctx context.Context) *slog.Logger {
	if reqLog, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return reqLog
	}
	return log
}

// WithLogger stores an enriched logger in the context. The auth middleware
// uses it to tag everything after identity resolution with the caller.
func WithLogger(ctx context.Context, reqLog *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, reqLog)
}
