package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Init installs the default slog logger. The level comes from LOG_LEVEL and
// falls back to fallback when the variable is unset or unknown.
func Init(fallback slog.Level) {
	install(os.Stderr, fallback)
}

// InitFile is Init writing to path instead of stderr, for when the terminal
// belongs to a full-screen UI. An empty path discards all records.
func InitFile(path string, fallback slog.Level) (io.Closer, error) {
	if path == "" {
		install(io.Discard, fallback)
		return io.NopCloser(nil), nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	install(f, fallback)
	return f, nil
}

func install(w io.Writer, fallback slog.Level) {
	level := fallback
	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		level = ParseLevel(l, fallback)
	}

	logger := slog.New(
		slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
		}),
	)
	slog.SetDefault(logger)
}

// ParseLevel maps the LOG_LEVEL vocabulary onto slog levels.
func ParseLevel(l string, fallback slog.Level) slog.Level {
	switch l {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "production", "prod":
		return slog.LevelError
	}
	return fallback
}
