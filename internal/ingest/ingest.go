// Package ingest embeds catalog records and writes them to the search
// index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/outfitter-ai/outfitter/internal/catalog"
	"github.com/outfitter-ai/outfitter/internal/provider"
	"github.com/outfitter-ai/outfitter/internal/search"
)

const (
	defaultWorkers    = 4
	defaultMaxRetries = 3
)

// DocumentWriter is the slice of the search store the pipeline needs.
type DocumentWriter interface {
	Upsert(ctx context.Context, docs []search.Document) error
}

// Config contains the dependencies and tuning knobs for a Pipeline.
type Config struct {
	Writer   DocumentWriter
	Embedder provider.Embedder
	Logger   *slog.Logger

	// Workers bounds concurrent embedding calls. Zero means 4.
	Workers int

	// RatePerSecond throttles embedding calls across all workers. Zero
	// means unthrottled.
	RatePerSecond float64

	// MaxRetries bounds per-record embedding retries on transient
	// provider errors. Zero means 3.
	MaxRetries int
}

func (cfg Config) validate() error {
	if cfg.Writer == nil {
		return errors.New("document writer is required")
	}
	if cfg.Embedder == nil {
		return errors.New("embedder is required")
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", cfg.Workers)
	}
	if cfg.RatePerSecond < 0 {
		return fmt.Errorf("rate must be >= 0, got %f", cfg.RatePerSecond)
	}
	return nil
}

// Failure records one record that could not be embedded.
type Failure struct {
	ID  string
	Err error
}

// Result summarizes one ingestion run.
type Result struct {
	Written  int
	Failures []Failure
}

// Pipeline embeds records concurrently and writes the successful ones to
// the index in a single transactional upsert. Embedding failures are
// collected per record instead of aborting the run; the write at the end
// is all-or-nothing, so a cancelled run leaves the index untouched.
type Pipeline struct {
	writer     DocumentWriter
	embedder   provider.Embedder
	logger     *slog.Logger
	workers    int
	limiter    *rate.Limiter
	maxRetries int
}

// New creates a Pipeline from cfg.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = defaultWorkers
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), workers)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		writer:     cfg.Writer,
		embedder:   cfg.Embedder,
		logger:     logger,
		workers:    workers,
		limiter:    limiter,
		maxRetries: maxRetries,
	}, nil
}

// Run embeds every record's description and upserts the resulting
// documents. Returns the per-record failures alongside the write count;
// the error is non-nil only when the run as a whole failed (context
// cancelled, or the final write rejected).
func (p *Pipeline) Run(ctx context.Context, records []catalog.Record) (*Result, error) {
	if len(records) == 0 {
		return &Result{}, nil
	}

	var (
		mu       sync.Mutex
		failures []Failure
	)
	docs := make([]search.Document, len(records))
	ok := make([]bool, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, rec := range records {
		g.Go(func() error {
			if err := p.limiter.Wait(gctx); err != nil {
				return err
			}

			vector, err := p.embed(gctx, rec.Content)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				p.logger.Warn("record skipped", "id", rec.ID, "error", err)
				mu.Lock()
				failures = append(failures, Failure{ID: rec.ID, Err: err})
				mu.Unlock()
				return nil
			}

			docs[i] = search.Document{
				ID:      rec.ID,
				Title:   rec.Title,
				Content: rec.Content,
				Vector:  vector,
			}
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	// Keep input order for the write.
	written := docs[:0]
	for i := range docs {
		if ok[i] {
			written = append(written, docs[i])
		}
	}

	if len(written) > 0 {
		if err := p.writer.Upsert(ctx, written); err != nil {
			return nil, fmt.Errorf("ingest: write documents: %w", err)
		}
	}

	p.logger.Info("ingestion finished",
		"records", len(records),
		"written", len(written),
		"failed", len(failures),
	)
	return &Result{Written: len(written), Failures: failures}, nil
}

// embed retries transient provider errors with exponential backoff.
// Permanent errors fail the record immediately.
func (p *Pipeline) embed(ctx context.Context, text string) ([]float32, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(p.maxRetries)), ctx)

	var vector []float32
	err := backoff.Retry(func() error {
		v, err := p.embedder.Embed(ctx, text)
		if err != nil {
			if provider.Retryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		vector = v
		return nil
	}, policy)
	if err != nil {
		return nil, err
	}
	return vector, nil
}
