package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/phrazzld/imglabel/internal/app"
	"github.com/phrazzld/imglabel/internal/config"
	"github.com/phrazzld/imglabel/internal/platform/logger"
	"github.com/phrazzld/imglabel/internal/platform/postgres"
)

// commandContext builds backends on demand so that commands only connect to
// what they use.
type commandContext struct {
	configFile string
	logLevel   string

	// openApp and openDB are replaced in tests.
	openApp func(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app.App, error)
	openDB  func(ctx context.Context, cfg *config.Config) (*sql.DB, error)
	load    func() (*config.Config, error)
}

func newCommandContext() *commandContext {
	return &commandContext{
		openApp: openSharedApp,
		openDB: func(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
			return postgres.Open(ctx, cfg.Database)
		},
		load: config.Load,
	}
}

// openSharedApp refuses an in-memory queue: it would be a fresh, empty queue
// rather than the one the server and workers use.
func openSharedApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app.App, error) {
	if err := app.RequireSharedQueue(cfg); err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, log, app.Options{})
}

func (c *commandContext) config() (*config.Config, error) {
	if c.configFile != "" {
		if err := os.Setenv(config.EnvPrefix+"_CONFIG_FILE", c.configFile); err != nil {
			return nil, err
		}
	}
	cfg, err := c.load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func (c *commandContext) logger() *slog.Logger {
	return logger.Setup(logger.Config{Level: c.logLevel, Output: os.Stderr})
}

// withApp runs fn against an App built from the configuration.
func (c *commandContext) withApp(ctx context.Context, fn func(a *app.App) error) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	a, err := c.openApp(ctx, cfg, c.logger())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// withDB runs fn against the configured database.
func (c *commandContext) withDB(ctx context.Context, fn func(db *sql.DB, log *slog.Logger) error) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url is not configured")
	}
	db, err := c.openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db, c.logger())
}
