// Package main is the entry point of the authentication service. It loads
// configuration, sets up logging, and starts the server; everything else
// lives in internal/.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/caracolito/auth-service/internal/config"
	"github.com/caracolito/auth-service/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("loading configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// The database directory may not exist on first run.
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("creating database directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("creating server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
