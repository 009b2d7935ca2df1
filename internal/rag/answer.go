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

// GroundingScope selects which retrieval batches feed the answer.
type GroundingScope int

const (
	// ScopeLatest answers from the most recent retrieval batch only.
	// This is the default: a turn that retrieved twice answers from the
	// refined second query, not a mix of both.
	ScopeLatest GroundingScope = iota

	// ScopeAll answers from every batch accumulated this turn, flattened
	// in append order.
	ScopeAll
)

// ResponderConfig contains the dependencies for a Responder.
type ResponderConfig struct {
	Completer provider.Completer
	Prompts   *prompt.Loader
	Logger    *slog.Logger

	// Scope selects the grounding batches used for answers. Defaults to
	// ScopeLatest.
	Scope GroundingScope
}

func (cfg ResponderConfig) validate() error {
	if cfg.Completer == nil {
		return errors.New("completer is required")
	}
	if cfg.Prompts == nil {
		return errors.New("prompt loader is required")
	}
	if cfg.Scope != ScopeLatest && cfg.Scope != ScopeAll {
		return fmt.Errorf("unknown grounding scope %d", cfg.Scope)
	}
	return nil
}

// Responder turns a grounded conversation into the assistant's reply. It
// never retrieves on its own; retrieval is the Grounder's job, and the
// Responder consumes whatever the grounding context holds.
type Responder struct {
	completer provider.Completer
	answer    *prompt.Template
	logger    *slog.Logger
	scope     GroundingScope
	tracer    trace.Tracer
}

// NewResponder creates a Responder, resolving the grounded-answer
// template up front.
func NewResponder(cfg ResponderConfig) (*Responder, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	answer, err := cfg.Prompts.Load(prompt.GroundedAnswer)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Responder{
		completer: cfg.Completer,
		answer:    answer,
		logger:    logger,
		scope:     cfg.Scope,
		tracer:    otel.Tracer("outfitter/rag"),
	}, nil
}

// Answer generates the assistant's reply for the conversation, grounded
// in the documents gctx accumulated. The rendered system prompt carries
// the documents; the conversation follows verbatim, so the model sees the
// full dialogue history.
//
// An empty grounding context is not an error: the prompt renders with no
// documents and the model is instructed to say it cannot answer.
func (r *Responder) Answer(ctx context.Context, conversation []provider.Message, gctx *GroundingContext) (string, error) {
	if len(conversation) == 0 {
		return "", fmt.Errorf("%w: conversation is empty, nothing to answer", ErrInvalidInput)
	}

	var docs []search.Hit
	turnID := ""
	if gctx != nil {
		turnID = gctx.TurnID
		switch r.scope {
		case ScopeAll:
			docs = gctx.AllGrounding()
		default:
			docs = gctx.LatestGrounding()
		}
	}

	ctx, span := r.tracer.Start(ctx, "rag.answer", trace.WithAttributes(
		attribute.String("turn_id", turnID),
		attribute.Int("documents", len(docs)),
	))
	defer span.End()

	rendered, err := r.answer.Render(struct {
		Documents []search.Hit
	}{Documents: docs})
	if err != nil {
		return "", &StageError{Stage: StageGenerate, Err: err}
	}

	messages := make([]provider.Message, 0, len(rendered)+len(conversation))
	messages = append(messages, rendered...)
	messages = append(messages, conversation...)

	reply, err := r.completer.Complete(ctx, messages, r.answer.Params)
	if err != nil {
		return "", &StageError{Stage: StageGenerate, Err: err}
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", &StageError{Stage: StageGenerate, Err: errors.New("model returned an empty reply")}
	}

	r.logger.Info("answer generated",
		"turn_id", turnID,
		"documents", len(docs),
		"reply_chars", len(reply),
	)
	return reply, nil
}
