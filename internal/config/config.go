// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (CAMILO_* plus GEMINI_API_KEY)
//  2. Config file (~/.camilo/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: generation model, embedder model and dimensionality
//   - Storage: PostgreSQL connection
//   - Retrieval: similarity threshold, result caps, shadow-ban range
//   - Persona: display name and safe-mode flag
//   - Tools: MCP server definitions (see tools.go)
//   - Observability: Datadog OTLP tracing
//
// Security: sensitive fields (API key, password) are masked in MarshalJSON.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates the Gemini API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderDimension indicates the embedder dimensionality is out of range.
	ErrInvalidEmbedderDimension = errors.New("invalid embedder dimension")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidThreshold indicates the similarity threshold is out of range.
	ErrInvalidThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidMatchCount indicates the per-kind result cap is out of range.
	ErrInvalidMatchCount = errors.New("invalid match count")

	// ErrInvalidShadowBanRange indicates the shadow-ban id range is inverted.
	ErrInvalidShadowBanRange = errors.New("invalid shadow-ban range")
)

// Default retrieval parameters. These are fixed for this system, not tuning
// knobs: the persona pipeline was calibrated against them.
const (
	// DefaultMatchThreshold is the minimum similarity for store candidates.
	DefaultMatchThreshold = 0.02

	// DefaultMatchCount caps results per collection per query.
	DefaultMatchCount = 5

	// DefaultContextLimit caps the fused context across all collections.
	DefaultContextLimit = 5

	// DefaultHistoryWindow is the number of recent messages embedded for retrieval.
	DefaultHistoryWindow = 4

	// DefaultEmbedderDimension is the pgvector column dimensionality.
	DefaultEmbedderDimension = 768
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// AI model configuration
	GeminiAPIKey      string `mapstructure:"gemini_api_key" json:"gemini_api_key"` // SENSITIVE: masked in MarshalJSON
	ModelName         string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel     string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDimension int32  `mapstructure:"embedder_dimension" json:"embedder_dimension"`

	// Persona configuration
	PersonaName string `mapstructure:"persona_name" json:"persona_name"`
	SafeMode    bool   `mapstructure:"safe_mode" json:"safe_mode"`

	// Retrieval configuration
	MatchThreshold float64 `mapstructure:"match_threshold" json:"match_threshold"`
	MatchCount     int32   `mapstructure:"match_count" json:"match_count"`
	ContextLimit   int     `mapstructure:"context_limit" json:"context_limit"`
	HistoryWindow  int     `mapstructure:"history_window" json:"history_window"`
	ShadowBanLow   int64   `mapstructure:"shadow_ban_low" json:"shadow_ban_low"`
	ShadowBanHigh  int64   `mapstructure:"shadow_ban_high" json:"shadow_ban_high"`

	// Generation loop configuration
	MaxToolIterations int     `mapstructure:"max_tool_iterations" json:"max_tool_iterations"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" json:"requests_per_second"`

	// Storage configuration
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server configuration
	Addr        string   `mapstructure:"addr" json:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`

	// Tool configuration (see tools.go)
	MCPServers []MCPServerConfig `mapstructure:"mcp_servers" json:"mcp_servers"`

	// Observability configuration
	Datadog DatadogConfig `mapstructure:"datadog" json:"datadog"`
}

// DatadogConfig holds OTLP tracing settings for the local Datadog agent.
type DatadogConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	AgentHost   string `mapstructure:"agent_host" json:"agent_host"`
	Environment string `mapstructure:"environment" json:"environment"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}

// Load reads configuration from defaults, the optional config file, and
// environment variables, then validates the result.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("CAMILO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	home, err := os.UserHomeDir()
	if err == nil {
		v.AddConfigPath(filepath.Join(home, ".camilo"))
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine: defaults + env cover the common case.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// GEMINI_API_KEY is the conventional variable name for the GenAI SDK;
	// honor it without the CAMILO_ prefix.
	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("embedder_model", "gemini-embedding-001")
	v.SetDefault("embedder_dimension", DefaultEmbedderDimension)

	v.SetDefault("persona_name", "Shubh")
	v.SetDefault("safe_mode", false)

	v.SetDefault("match_threshold", DefaultMatchThreshold)
	v.SetDefault("match_count", DefaultMatchCount)
	v.SetDefault("context_limit", DefaultContextLimit)
	v.SetDefault("history_window", DefaultHistoryWindow)
	v.SetDefault("shadow_ban_low", 195)
	v.SetDefault("shadow_ban_high", 221)

	v.SetDefault("max_tool_iterations", 10)
	v.SetDefault("requests_per_second", 10.0)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "camilo")
	v.SetDefault("postgres_db_name", "camilo")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("addr", "127.0.0.1:3001")

	v.SetDefault("datadog.enabled", false)
	v.SetDefault("datadog.agent_host", "localhost:4318")
	v.SetDefault("datadog.environment", "dev")
	v.SetDefault("datadog.service_name", "camilo")
}

// ConnURL returns the PostgreSQL connection URL for pgx and golang-migrate.
func (c *Config) ConnURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:   fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:   c.PostgresDBName,
	}
	q := url.Values{}
	q.Set("sslmode", c.PostgresSSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// MarshalJSON masks sensitive fields so the config can be logged safely.
func (c *Config) MarshalJSON() ([]byte, error) {
	type alias Config // avoid recursion
	masked := alias(*c)
	if masked.GeminiAPIKey != "" {
		masked.GeminiAPIKey = "***"
	}
	if masked.PostgresPassword != "" {
		masked.PostgresPassword = "***"
	}
	return json.Marshal(masked)
}
