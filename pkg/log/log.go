// Package log configures the process-wide structured logger.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs the default slog text logger on stderr. An empty level
// falls back to the LOG_LEVEL environment variable, then to info.
func Setup(logLevel string) {
	if logLevel == "" {
		logLevel = os.Getenv("LOG_LEVEL")
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: Level(logLevel),
	})))
}

// Level maps a level name onto its slog level. Names are case-insensitive;
// unknown names read as info.
func Level(name string) slog.Level {
	switch strings.ToLower(name) {
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

// WithModule returns a logger tagged with the given module name.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
