// Package config loads application configuration with multi-source
// priority.
//
// Sources, highest to lowest:
//  1. Environment variables (OUTFITTER_* and DATABASE_URL)
//  2. Config file (~/.outfitter/config.yaml or ./config.yaml)
//  3. Defaults
//
// Secrets (the Postgres password, GEMINI_API_KEY) are never logged;
// MarshalJSON masks them.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates the provider API key is not set.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModel indicates a model name is empty or malformed.
	ErrInvalidModel = errors.New("invalid model")

	// ErrInvalidIndex indicates the index configuration is unusable.
	ErrInvalidIndex = errors.New("invalid index configuration")

	// ErrInvalidPostgres indicates the PostgreSQL settings are unusable.
	ErrInvalidPostgres = errors.New("invalid PostgreSQL configuration")

	// ErrInvalidIngest indicates the ingestion tuning is out of range.
	ErrInvalidIngest = errors.New("invalid ingest configuration")
)

const (
	// DefaultEmbedderModel outputs 3072 dimensions natively but supports
	// truncation; the index schema pins the dimensionality below.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultEmbedderDimensions matches the embedder's truncated output
	// and the vector column width.
	DefaultEmbedderDimensions = 768

	// DefaultIndexName is the product index table name.
	DefaultIndexName = "products"
)

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON; update it when
// adding new secrets.
type Config struct {
	// Model configuration
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	PromptDir     string `mapstructure:"prompt_dir" json:"prompt_dir"`

	// Search index configuration
	IndexName          string `mapstructure:"index_name" json:"index_name"`
	EmbedderDimensions int    `mapstructure:"embedder_dimensions" json:"embedder_dimensions"`
	TopK               int    `mapstructure:"top_k" json:"top_k"`

	// Provider call budget per attempt
	RequestTimeout time.Duration `mapstructure:"request_timeout" json:"request_timeout"`

	// Ingestion tuning
	IngestWorkers    int     `mapstructure:"ingest_workers" json:"ingest_workers"`
	IngestRate       float64 `mapstructure:"ingest_rate" json:"ingest_rate"`
	IngestMaxRetries int     `mapstructure:"ingest_max_retries" json:"ingest_max_retries"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// Load loads configuration from defaults, config file, and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".outfitter"))
	}
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL wins over individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("embedder_dimensions", DefaultEmbedderDimensions)
	v.SetDefault("index_name", DefaultIndexName)
	v.SetDefault("top_k", 5)
	v.SetDefault("request_timeout", "30s")

	v.SetDefault("ingest_workers", 4)
	v.SetDefault("ingest_rate", 0)
	v.SetDefault("ingest_max_retries", 3)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "outfitter")
	v.SetDefault("postgres_password", "outfitter_dev_password")
	v.SetDefault("postgres_db_name", "outfitter")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.service_name", "outfitter")
	v.SetDefault("tracing.environment", "dev")
}

// bindEnvVariables binds runtime overrides explicitly. GEMINI_API_KEY is
// read directly by the Genkit plugin, not via viper; Validate only
// checks its presence.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_name", "OUTFITTER_MODEL_NAME")
	mustBind("embedder_model", "OUTFITTER_EMBEDDER_MODEL")
	mustBind("embedder_dimensions", "OUTFITTER_EMBEDDER_DIMENSIONS")
	mustBind("index_name", "OUTFITTER_INDEX_NAME")
	mustBind("top_k", "OUTFITTER_TOP_K")
	mustBind("prompt_dir", "OUTFITTER_PROMPT_DIR")
	mustBind("postgres_password", "OUTFITTER_POSTGRES_PASSWORD")
	mustBind("tracing.enabled", "OUTFITTER_TRACING_ENABLED")
	mustBind("tracing.endpoint", "OUTFITTER_TRACING_ENDPOINT")
}

// maskedValue uses full-width blocks so no substring of a real secret
// ever appears in logs.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep the first and last two characters for debug
// utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON masks sensitive fields.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified completion model name for
// Genkit, e.g. "googleai/gemini-2.5-flash". A name that already carries
// a provider prefix is returned as-is.
func (c *Config) FullModelName() string {
	return qualifyModel(c.ModelName)
}

// FullEmbedderName returns the provider-qualified embedder name.
func (c *Config) FullEmbedderName() string {
	return qualifyModel(c.EmbedderModel)
}

func qualifyModel(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	return "googleai/" + name
}

// String implements Stringer so accidental printing never leaks secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
