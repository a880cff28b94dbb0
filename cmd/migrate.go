package cmd

import (
	"fmt"

	"github.com/camilo-ai/camilo/db"
	"github.com/camilo-ai/camilo/internal/config"
	"github.com/camilo-ai/camilo/internal/log"
)

// runMigrate applies pending database migrations and exits.
func runMigrate(logger log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := db.Migrate(cfg.ConnURL(), logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations up to date")
	return nil
}
