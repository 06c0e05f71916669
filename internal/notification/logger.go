package notification

import (
	"log/slog"
	"sync"

	"github.com/vigil-cam/vigil/internal/logging"
)

var (
	// fileLogger is the dedicated alert delivery log, nil until InitFileLogger
	fileLogger   *slog.Logger
	loggerCloser func() error
	loggerMu     sync.RWMutex
)

// InitFileLogger routes alert delivery logs to a rotating file in addition
// to the service logger.
func InitFileLogger(path string, level slog.Level, cfg logging.FileConfig) error {
	logger, closer, err := logging.NewFileLogger(path, "alerts", level, cfg)
	if err != nil {
		return err
	}

	loggerMu.Lock()
	defer loggerMu.Unlock()
	if loggerCloser != nil {
		_ = loggerCloser()
	}
	fileLogger = logger
	loggerCloser = closer
	return nil
}

// CloseFileLogger closes the alert delivery log file.
func CloseFileLogger() error {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if loggerCloser == nil {
		return nil
	}
	err := loggerCloser()
	fileLogger = nil
	loggerCloser = nil
	return err
}

func getLogger() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if fileLogger != nil {
		return fileLogger
	}
	if l := logging.ForService("notification"); l != nil {
		return l
	}
	return slog.Default().With("service", "notification")
}
