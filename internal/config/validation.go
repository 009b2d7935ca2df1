package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
)

// Validate checks configuration values. Returns sentinel errors usable
// with errors.Is().
func (c *Config) Validate() error {
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModel)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidModel)
	}

	if c.IndexName == "" {
		return fmt.Errorf("%w: index_name cannot be empty", ErrInvalidIndex)
	}
	if c.EmbedderDimensions < 1 || c.EmbedderDimensions > 16000 {
		return fmt.Errorf("%w: embedder_dimensions must be between 1 and 16,000, got %d",
			ErrInvalidIndex, c.EmbedderDimensions)
	}
	if c.TopK < 1 || c.TopK > 50 {
		return fmt.Errorf("%w: top_k must be between 1 and 50, got %d", ErrInvalidIndex, c.TopK)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request_timeout must be positive, got %s", ErrInvalidModel, c.RequestTimeout)
	}

	if c.IngestWorkers < 1 || c.IngestWorkers > 64 {
		return fmt.Errorf("%w: ingest_workers must be between 1 and 64, got %d",
			ErrInvalidIngest, c.IngestWorkers)
	}
	if c.IngestRate < 0 {
		return fmt.Errorf("%w: ingest_rate must be >= 0, got %f", ErrInvalidIngest, c.IngestRate)
	}
	if c.IngestMaxRetries < 0 || c.IngestMaxRetries > 10 {
		return fmt.Errorf("%w: ingest_max_retries must be between 0 and 10, got %d",
			ErrInvalidIngest, c.IngestMaxRetries)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgres)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port must be between 1 and 65535, got %d", ErrInvalidPostgres, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgres)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set", ErrInvalidPostgres)
	}
	if c.PostgresPassword == "outfitter_dev_password" {
		slog.Warn("using the default development password for PostgreSQL",
			"hint", "change postgres_password for production deployments")
	}

	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: postgres_ssl_mode %q is not valid, must be one of %v",
			ErrInvalidPostgres, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
