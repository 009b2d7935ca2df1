package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outfitter-ai/outfitter/internal/config"
	"github.com/outfitter-ai/outfitter/internal/ingest"
	"github.com/outfitter-ai/outfitter/internal/observability"
	"github.com/outfitter-ai/outfitter/internal/prompt"
	"github.com/outfitter-ai/outfitter/internal/provider"
	"github.com/outfitter-ai/outfitter/internal/rag"
	"github.com/outfitter-ai/outfitter/internal/search"
)

// Setup initializes the application. On error everything already
// initialized is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing first so every later component's spans have somewhere to go.
	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	store, err := search.New(pool, search.DefaultIndexConfiguration(cfg.IndexName, cfg.EmbedderDimensions), logger)
	if err != nil {
		return nil, err
	}
	a.Store = store

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	opts := provider.Options{Timeout: cfg.RequestTimeout, Logger: logger}
	embedder := provider.NewGenkitEmbedder(
		googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel),
		cfg.EmbedderModel,
		opts,
	)
	completer := provider.NewGenkitCompleter(g, cfg.FullModelName(), opts)

	prompts, err := prompt.NewLoader(cfg.PromptDir)
	if err != nil {
		return nil, fmt.Errorf("loading prompts: %w", err)
	}

	a.Ingest, err = ingest.New(ingest.Config{
		Writer:        store,
		Embedder:      embedder,
		Logger:        logger,
		Workers:       cfg.IngestWorkers,
		RatePerSecond: cfg.IngestRate,
		MaxRetries:    cfg.IngestMaxRetries,
	})
	if err != nil {
		return nil, err
	}

	a.Grounder, err = rag.NewGrounder(rag.GrounderConfig{
		Completer: completer,
		Embedder:  embedder,
		Searcher:  store,
		Prompts:   prompts,
		Logger:    logger,
		TopK:      cfg.TopK,
	})
	if err != nil {
		return nil, err
	}

	a.Responder, err = rag.NewResponder(rag.ResponderConfig{
		Completer: completer,
		Prompts:   prompts,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	return a, nil
}

func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	shutdown, err := observability.Setup(ctx, cfg.Tracing, logger)
	if err != nil {
		logger.Warn("tracing setup failed, continuing without it", "error", err)
		return func() {}
	}

	//nolint:contextcheck // shutdown runs during teardown when the parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Fail fast when the database is unreachable.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, fmt.Errorf("initializing genkit")
	}
	return g, nil
}
