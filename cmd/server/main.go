// Package main is the entry point for the EcoSphere server.
//
// The main package stays minimal:
//  1. Read configuration from the environment
//  2. Create the logger
//  3. Build and start the server
//
// All actual logic lives in internal/.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/ecosphere/internal/config"
	"github.com/sakif/ecosphere/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// See internal/config for the variables. SESSION_SECRET is required:
	//   SESSION_SECRET=$(openssl rand -hex 32)
	cfg, err := config.Load(context.Background())
	if err != nil {
		slog.Error("loading configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		slog.Error("invalid LOG_LEVEL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	// === 3. DATABASE DIRECTORY ===
	// os.MkdirAll is `mkdir -p`. The file itself is created by sqlite.New.
	if cfg.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
