// Package app wires the application together: configuration, tracing,
// the database pool, model providers, and the retrieval pipeline.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outfitter-ai/outfitter/internal/config"
	"github.com/outfitter-ai/outfitter/internal/ingest"
	"github.com/outfitter-ai/outfitter/internal/rag"
	"github.com/outfitter-ai/outfitter/internal/search"
)

// App is the application container. Build one with Setup and release it
// with Close.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit *genkit.Genkit
	Pool   *pgxpool.Pool

	Store     *search.Store
	Ingest    *ingest.Pipeline
	Grounder  *rag.Grounder
	Responder *rag.Responder

	otelCleanup func()
}

// Close releases all resources in reverse initialization order.
func (a *App) Close() error {
	if a.Logger == nil {
		a.Logger = slog.Default()
	}
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Debug("database pool closed")
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
