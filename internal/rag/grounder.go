package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/outfitter-ai/outfitter/internal/prompt"
	"github.com/outfitter-ai/outfitter/internal/provider"
	"github.com/outfitter-ai/outfitter/internal/search"
)

// DefaultTopK is the retrieval depth when neither the caller nor the
// context overrides it.
const DefaultTopK = 5

// thoughtSearchQuery titles the trace entry recording the rewritten query.
const thoughtSearchQuery = "Generated Search Query"

// Searcher is the slice of the search store the grounder needs.
type Searcher interface {
	HybridSearch(ctx context.Context, q search.Query) ([]search.Hit, error)
}

// GrounderConfig contains the required dependencies for a Grounder.
type GrounderConfig struct {
	Completer provider.Completer
	Embedder  provider.Embedder
	Searcher  Searcher
	Prompts   *prompt.Loader
	Logger    *slog.Logger

	// TopK is the default retrieval depth. Zero means DefaultTopK.
	TopK int
}

func (cfg GrounderConfig) validate() error {
	if cfg.Completer == nil {
		return errors.New("completer is required")
	}
	if cfg.Embedder == nil {
		return errors.New("embedder is required")
	}
	if cfg.Searcher == nil {
		return errors.New("searcher is required")
	}
	if cfg.Prompts == nil {
		return errors.New("prompt loader is required")
	}
	return nil
}

// Grounder derives a search query from a conversation, retrieves matching
// documents, and appends both to the turn's grounding context.
//
// The turn's critical path is strictly sequential: query rewrite, then
// embedding, then search — each step consumes the previous step's output.
type Grounder struct {
	completer provider.Completer
	embedder  provider.Embedder
	searcher  Searcher
	intent    *prompt.Template // cached at construction
	logger    *slog.Logger
	topK      int
	tracer    trace.Tracer
}

// NewGrounder creates a Grounder, resolving the query-intent template up
// front so a misconfigured prompt directory fails at startup.
func NewGrounder(cfg GrounderConfig) (*Grounder, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	intent, err := cfg.Prompts.Load(prompt.QueryIntent)
	if err != nil {
		return nil, err
	}

	topK := cfg.TopK
	if topK == 0 {
		topK = DefaultTopK
	}
	if topK < 1 {
		return nil, fmt.Errorf("top_k must be >= 1, got %d", topK)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Grounder{
		completer: cfg.Completer,
		embedder:  cfg.Embedder,
		searcher:  cfg.Searcher,
		intent:    intent,
		logger:    logger,
		topK:      topK,
		tracer:    otel.Tracer("outfitter/rag"),
	}, nil
}

// GroundOption adjusts one Ground call.
type GroundOption func(*groundConfig)

type groundConfig struct {
	topK    int
	topKSet bool
}

// WithTopK overrides the retrieval depth for this call. It wins over the
// context's "top" override.
func WithTopK(k int) GroundOption {
	return func(c *groundConfig) {
		c.topK = k
		c.topKSet = true
	}
}

// Ground runs one retrieval pass for the conversation and appends the
// trace to gctx: one thought holding the generated search query, and one
// grounding batch holding the retrieved documents (possibly empty — "no
// results" is distinguishable from "no retrieval ran").
//
// gctx is mutated in place and returned for chaining; a nil gctx starts a
// fresh context. On failure the error names the stage that failed and
// gctx is left exactly as it was.
func (g *Grounder) Ground(ctx context.Context, conversation []provider.Message, gctx *GroundingContext, opts ...GroundOption) (*GroundingContext, error) {
	if len(conversation) == 0 {
		return gctx, fmt.Errorf("%w: conversation is empty, no query can be derived", ErrInvalidInput)
	}

	if gctx == nil {
		gctx = NewContext()
	}

	var call groundConfig
	for _, opt := range opts {
		opt(&call)
	}
	topK := gctx.TopOverride(g.topK)
	if call.topKSet {
		topK = call.topK
	}
	if topK < 1 {
		return gctx, fmt.Errorf("%w: top_k must be >= 1, got %d", ErrInvalidInput, topK)
	}

	ctx, span := g.tracer.Start(ctx, "rag.ground", trace.WithAttributes(
		attribute.String("turn_id", gctx.TurnID),
		attribute.Int("top_k", topK),
	))
	defer span.End()

	searchQuery, err := g.rewriteQuery(ctx, conversation)
	if err != nil {
		return gctx, &StageError{Stage: StageQueryRewrite, Err: err}
	}

	vector, err := g.embedder.Embed(ctx, searchQuery)
	if err != nil {
		return gctx, &StageError{Stage: StageEmbed, Err: err}
	}

	hits, err := g.searcher.HybridSearch(ctx, search.Query{
		Text:   searchQuery,
		Vector: vector,
		TopK:   topK,
	})
	if err != nil {
		return gctx, &StageError{Stage: StageSearch, Err: err}
	}

	// One thought and one batch per call, always appended together.
	gctx.AddThought(thoughtSearchQuery, searchQuery)
	gctx.AddGrounding(hits)

	g.logger.Info("conversation grounded",
		"turn_id", gctx.TurnID,
		"search_query", searchQuery,
		"top_k", topK,
		"hits", len(hits),
	)
	return gctx, nil
}

// rewriteQuery asks the completion provider to compress the conversation
// into one standalone search query.
func (g *Grounder) rewriteQuery(ctx context.Context, conversation []provider.Message) (string, error) {
	messages, err := g.intent.Render(struct {
		Conversation []provider.Message
	}{Conversation: conversation})
	if err != nil {
		return "", err
	}

	raw, err := g.completer.Complete(ctx, messages, g.intent.Params)
	if err != nil {
		return "", err
	}

	query := strings.TrimSpace(raw)
	if query == "" {
		return "", errors.New("model returned an empty search query")
	}
	return query, nil
}
