package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/camilo-ai/camilo/api"
	"github.com/camilo-ai/camilo/db"
	"github.com/camilo-ai/camilo/internal/app"
	"github.com/camilo-ai/camilo/internal/config"
	"github.com/camilo-ai/camilo/internal/log"
)

// runServe initializes the application and starts the HTTP API server.
// Pending migrations run first so a fresh database comes up ready.
func runServe(logger log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := db.Migrate(cfg.ConnURL(), logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	logger.Info("starting", "version", AppVersion, "persona", cfg.PersonaName)

	server := api.NewServer(api.ServerConfig{
		Assistant:   a.Assistant,
		Broker:      a.Broker,
		Pool:        a.Pool,
		Logger:      logger,
		CORSOrigins: cfg.CORSOrigins,
	})
	return server.Run(ctx, cfg.Addr)
}
