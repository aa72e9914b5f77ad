package main

import (
	"log/slog"
	"os"

	"github.com/kadirpekel/agentmap/pkg/config"
	"github.com/kadirpekel/agentmap/pkg/logger"
)

// buildLogger constructs the root *slog.Logger from cfg.Logging, which
// loadConfig has already resolved (config file, with any --log-level /
// --log-file flag overlaid on top). Mirrors the teacher's
// initLoggerFromCLI (cmd/hector/logger.go)'s flag-over-config precedence.
func buildLogger(cfg *config.EngineConfig) (*slog.Logger, func(), error) {
	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, nil, err
	}

	output := os.Stderr
	var cleanup func()
	if cfg.Logging.File != "" {
		f, cleanupFn, err := logger.OpenLogFile(cfg.Logging.File)
		if err != nil {
			return nil, nil, err
		}
		output = f
		cleanup = cleanupFn
	}

	return logger.New("cli", level, output), cleanup, nil
}
