// Command seed loads the demo users and posts into the database at DB_PATH.
//
// It reads the same environment as the server (SESSION_SECRET keys the
// stored identities) and can be run any number of times.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/ecosphere/internal/auth"
	"github.com/sakif/ecosphere/internal/config"
	sqliteRepo "github.com/sakif/ecosphere/internal/repository/sqlite"
	"github.com/sakif/ecosphere/internal/seed"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Error("loading configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		logger.Error("failed to create database directory", slog.String("error", err.Error()))
		os.Exit(1)
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		logger.Error("opening database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	hasher, err := auth.NewIdentityHasher(cfg.Session.Secret)
	if err != nil {
		logger.Error("creating identity hasher", slog.String("error", err.Error()))
		os.Exit(1)
	}

	res, err := seed.Run(ctx, db.Users(), db.Posts(), hasher, logger)
	if err != nil {
		logger.Error("seeding database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("database populated",
		slog.String("database", cfg.DBPath),
		slog.Int("users", res.Users),
		slog.Int("posts", res.Posts),
	)
}
