package telemetry

import (
	"log/slog"

	"github.com/vigil-cam/vigil/internal/logging"
)

func getLogger() *slog.Logger {
	if l := logging.ForService("telemetry"); l != nil {
		return l
	}
	return slog.Default().With("service", "telemetry")
}
