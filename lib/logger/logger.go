package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

type Logger interface {
	Debug(log ...any)
	Error(log ...any)
}

var root = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
	Level: levelFromEnv(),
}))

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
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

// New returns the process logger tagged with the given service name.
func New(service string) *slog.Logger {
	return root.With("service", service)
}

// Discard is a logger that drops everything, used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// PrefixedLogger adapts positional logging calls onto slog.
type PrefixedLogger struct {
	Prefix string
	Slog   *slog.Logger
}

func (pl PrefixedLogger) logger() *slog.Logger {
	if pl.Slog != nil {
		return pl.Slog
	}
	return New(pl.Prefix)
}

func (pl PrefixedLogger) Debug(log ...any) {
	pl.logger().Debug(strings.TrimSuffix(fmt.Sprintln(log...), "\n"))
}

func (pl PrefixedLogger) Error(log ...any) {
	pl.logger().Error(strings.TrimSuffix(fmt.Sprintln(log...), "\n"))
}

var _ Logger = &PrefixedLogger{}
