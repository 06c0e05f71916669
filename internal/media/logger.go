package media

import (
	"log/slog"

	"github.com/vigil-cam/vigil/internal/logging"
)

func getLogger() *slog.Logger {
	if l := logging.ForService("media"); l != nil {
		return l
	}
	return slog.Default().With("service", "media")
}
