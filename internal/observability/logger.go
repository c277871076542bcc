package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

type Logger struct {
	*slog.Logger
}

func NewLogger(serviceName, env string) *Logger {
	return NewLoggerTo(os.Stdout, serviceName, env)
}

// NewLoggerTo writes to w instead of stdout.
func NewLoggerTo(w io.Writer, serviceName, env string) *Logger {
	level := slog.LevelInfo
	if env == "dev" {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(handler).With("service", serviceName, "env", env)
	return &Logger{logger}
}

// Discard returns a logger that drops everything. Used by tests and tools.
func Discard() *Logger {
	return &Logger{slog.New(slog.NewJSONHandler(io.Discard, nil))}
}

// WithRequestID stores the request id so WithContext can attach it.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request id carried by ctx, if any.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithContext adds the request id from ctx when present.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if id := RequestID(ctx); id != "" {
		return &Logger{l.Logger.With("request_id", id)}
	}
	return l
}
