package config

import (
	"fmt"
	"strings"
)

// Validate checks configuration values and returns the first violation
// wrapped around its sentinel error.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.GeminiAPIKey) == "" {
		return fmt.Errorf("%w: set GEMINI_API_KEY or gemini_api_key", ErrMissingAPIKey)
	}
	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model_name must not be empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder_model must not be empty", ErrInvalidModelName)
	}
	if c.EmbedderDimension < 1 || c.EmbedderDimension > 4096 {
		return fmt.Errorf("%w: got %d, want 1-4096", ErrInvalidEmbedderDimension, c.EmbedderDimension)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: postgres_host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: postgres_db_name must not be empty", ErrInvalidPostgresDBName)
	}

	if c.MatchThreshold < 0 || c.MatchThreshold > 1 {
		return fmt.Errorf("%w: got %g, want [0,1]", ErrInvalidThreshold, c.MatchThreshold)
	}
	if c.MatchCount < 1 || c.MatchCount > 100 {
		return fmt.Errorf("%w: got %d, want 1-100", ErrInvalidMatchCount, c.MatchCount)
	}
	if c.ContextLimit < 1 {
		return fmt.Errorf("%w: context_limit must be positive, got %d", ErrInvalidMatchCount, c.ContextLimit)
	}
	if c.HistoryWindow < 1 {
		return fmt.Errorf("%w: history_window must be positive, got %d", ErrInvalidMatchCount, c.HistoryWindow)
	}
	if c.ShadowBanLow > c.ShadowBanHigh {
		return fmt.Errorf("%w: low %d > high %d", ErrInvalidShadowBanRange, c.ShadowBanLow, c.ShadowBanHigh)
	}

	if err := validateMCPServers(c.MCPServers); err != nil {
		return err
	}

	return nil
}
