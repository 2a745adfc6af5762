package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	slogmulti "github.com/samber/slog-multi"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Options configures the process-wide logger.
type Options struct {
	// Level is the minimum level written ("debug", "info", "warn", "error").
	Level string
	// Format is "text" (default) or "json".
	Format string
	// File, if non-nil, receives a copy of every record next to stderr.
	File io.Writer
	// Quiet suppresses the stderr handler.
	Quiet bool
}

var (
	mu       sync.RWMutex
	logger   *slog.Logger
	levelVar = new(slog.LevelVar)
)

func init() {
	Setup(Options{})
}

// Setup replaces the global logger. It is safe to call more than once;
// the last call wins.
func Setup(opts Options) {
	levelVar.Set(parseLevel(opts.Level))
	handlerOpts := &slog.HandlerOptions{Level: levelVar}

	handlers := make([]slog.Handler, 0, 2)
	if !opts.Quiet {
		handlers = append(handlers, newHandler(os.Stderr, opts.Format, handlerOpts))
	}
	if opts.File != nil {
		handlers = append(handlers, newHandler(opts.File, opts.Format, handlerOpts))
	}

	l := slog.New(slogmulti.Fanout(handlers...))

	mu.Lock()
	logger = l
	mu.Unlock()
	slog.SetDefault(l)
}

func SetLevel(l Level) {
	levelVar.Set(parseLevel(string(l)))
}

// Logger returns the underlying slog logger, e.g. for libraries that
// accept one.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debug(msg string, kv ...any) {
	logWithLevel(slog.LevelDebug, msg, kv...)
}

func Info(msg string, kv ...any) {
	logWithLevel(slog.LevelInfo, msg, kv...)
}

func Warn(msg string, kv ...any) {
	logWithLevel(slog.LevelWarn, msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	logWithLevel(slog.LevelError, msg, extended...)
}

func logWithLevel(level slog.Level, msg string, kv ...any) {
	l := Logger()
	if !l.Enabled(context.Background(), level) {
		return
	}
	l.Log(context.Background(), level, msg, kv...)
}

func parseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(LevelDebug):
		return slog.LevelDebug
	case string(LevelWarn), "WARNING":
		return slog.LevelWarn
	case string(LevelError):
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
