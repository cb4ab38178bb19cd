package logging

import (
	"log/slog"
)

// SetupMCPMode initializes logging for the MCP stdio server and installs the
// logger as the default.
//
// stdout carries JSON-RPC exclusively, and clients treat stderr noise as a
// broken server, so logs go to the file only. An empty filePath uses
// DefaultLogPath.
func SetupMCPMode(level, filePath string) (func(), error) {
	cfg := DefaultConfig()
	cfg.Level = level
	if filePath != "" {
		cfg.FilePath = filePath
	}
	cfg.WriteToStderr = false

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	slog.Info("MCP mode logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level))

	return cleanup, nil
}
