package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
)

// LevelFatal sits above slog.LevelError for "Fatal" run logs.
const LevelFatal = slog.Level(12)

// New creates a configured application logger.
// It writes to Stderr (to keep Stdout free for reports and JSON-RPC).
// It standardizes common keys (e.g., "error" -> "err").
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, handlerOptions(level)))
}

// NewJSON creates a logger emitting JSON lines to Stderr.
func NewJSON(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, handlerOptions(level)))
}

// NewWithFormat picks the handler by name ("json" or "text").
func NewWithFormat(level slog.Level, format string) *slog.Logger {
	if strings.EqualFold(format, "json") {
		return NewJSON(level)
	}
	return New(level)
}

// NewNop returns a no-op logger.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func handlerOptions(level slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Standardize 'error' key to 'err'
			if a.Key == "error" {
				a.Key = "err"
			}
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl >= LevelFatal {
					a.Value = slog.StringValue("FATAL")
				}
			}
			return a
		},
	}
}

// ParseLevel maps a level name to slog, defaulting to Info.
func ParseLevel(s string) slog.Level {
	lvl, err := domain.ParseLogLevel(s)
	if err != nil {
		return slog.LevelInfo
	}
	return FromDomain(lvl)
}

// FromDomain maps run log levels onto slog levels.
func FromDomain(l domain.LogLevel) slog.Level {
	switch l {
	case domain.LogLevelDebug:
		return slog.LevelDebug
	case domain.LogLevelInfo:
		return slog.LevelInfo
	case domain.LogLevelWarn:
		return slog.LevelWarn
	case domain.LogLevelError:
		return slog.LevelError
	}
	return LevelFatal
}
