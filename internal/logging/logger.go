// Package logging configures log/slog for the server and the CLI.
//
// Loggers obtained through FromContext carry the chi request id plus the
// operator and upload job id when those were attached to the context, so
// every entry written while an upload runs can be correlated.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey int

const (
	operatorKey ctxKey = iota
	jobKey
)

// New builds a logger writing to w.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Setup installs a logger writing to w as the slog default.
func Setup(w io.Writer, level, format string) {
	slog.SetDefault(New(w, level, format))
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// WithOperator attaches the acting user to ctx.
func WithOperator(ctx context.Context, operator string) context.Context {
	if operator == "" {
		return ctx
	}
	return context.WithValue(ctx, operatorKey, operator)
}

// Operator returns the operator attached by WithOperator, if any.
func Operator(ctx context.Context) string {
	op, _ := ctx.Value(operatorKey).(string)
	return op
}

// WithJob attaches a background upload job id to ctx.
func WithJob(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobKey, jobID)
}

// FromContext returns the default logger enriched with whatever request
// metadata ctx carries.
//
//	logger := logging.FromContext(r.Context())
//	logger.Info("mapping suggested", "columns", len(cols))
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if op := Operator(ctx); op != "" {
		logger = logger.With("operator", op)
	}
	if job, ok := ctx.Value(jobKey).(string); ok && job != "" {
		logger = logger.With("job_id", job)
	}
	return logger
}

// WithFields returns a context logger with additional structured fields.
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
