package conf

import (
	"log/slog"

	"github.com/vigil-cam/vigil/internal/logging"
)

// GetLogger returns the config package logger.
// Fetched on each call because logging may be initialized after package init.
func GetLogger() *slog.Logger {
	if l := logging.ForService("config"); l != nil {
		return l
	}
	return slog.Default().With("service", "config")
}
