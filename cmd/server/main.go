// Package main implements the imglabel API server. It accepts image uploads,
// serves extracted labels and thumbnails, and by default runs the extraction
// workers in the same process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/imglabel/internal/app"
	"github.com/phrazzld/imglabel/internal/config"
	"github.com/phrazzld/imglabel/internal/platform/logger"
	"github.com/phrazzld/imglabel/internal/platform/postgres"
)

func main() {
	migrateCmd := flag.String("migrate", "", "Run a database migration command (up, down, reset, status, version) and exit")
	flag.Parse()

	if err := run(*migrateCmd); err != nil {
		slog.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(migrateCmd string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.Setup(logger.Config{Level: cfg.Server.LogLevel})
	log.Info("server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("queue_backend", cfg.Queue.Backend),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.String("object_store_backend", cfg.ObjectStore.Backend),
		slog.String("vision_provider", cfg.Vision.Provider),
		slog.Bool("worker_enabled", cfg.Worker.Enabled))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if migrateCmd != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		return postgres.Migrate(ctx, db, migrateCmd, log)
	}

	a, err := app.New(ctx, cfg, log, app.Options{Worker: cfg.Worker.Enabled})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("cleanup failed", slog.String("error", err.Error()))
		}
	}()

	a.StartBackground(ctx)
	return startHTTPServer(ctx, a, newRouter(a))
}
