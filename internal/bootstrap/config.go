package bootstrap

import (
	"log/slog"
	"os"
	"strings"

	"github.com/sentrypost/authcore/config"
)

// InitLogger initializes the structured logger at the given level and installs it as the default.
func InitLogger(level string) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// LoadConfig loads configuration from environment variables (and .env outside production).
func LoadConfig() (config.AppConfig, error) {
	return config.Load()
}
