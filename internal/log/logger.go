// Package log is a thin structured logger over log/slog shared by the
// daemon, the CLI and the core packages.
package log

import (
	"context"
	"io"
	"log/slog"
)

// Logger provides structured logging with slog.
type Logger struct {
	slog   *slog.Logger
	config Config
}

// New creates a Logger with the given configuration.
func New(config Config) *Logger {
	if config.Output == nil {
		config.Output = DefaultConfig().Output
	}
	opts := &slog.HandlerOptions{
		Level:     config.Level.ToSlogLevel(),
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	switch config.Format {
	case FormatText:
		handler = slog.NewTextHandler(config.Output, opts)
	default:
		handler = slog.NewJSONHandler(config.Output, opts)
	}

	return &Logger{slog: slog.New(handler), config: config}
}

// Default creates a logger with DefaultConfig.
func Default() *Logger {
	return New(DefaultConfig())
}

// Nop returns a logger that discards everything. Used by tests.
func Nop() *Logger {
	return New(Config{Level: LevelError, Output: io.Discard})
}

// With returns a Logger that adds args to every entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...), config: l.config}
}

// WithError adds the error message, and its code when the error carries one.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	if coded, ok := err.(interface{ ErrorCode() string }); ok {
		return l.With("error", err.Error(), "error_code", coded.ErrorCode())
	}
	return l.With("error", err.Error())
}

// Slog exposes the underlying slog.Logger.
func (l *Logger) Slog() *slog.Logger { return l.slog }

func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.slog.DebugContext(ctx, msg, args...)
}

func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.slog.InfoContext(ctx, msg, args...)
}

func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.slog.WarnContext(ctx, msg, args...)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.slog.ErrorContext(ctx, msg, args...)
}
