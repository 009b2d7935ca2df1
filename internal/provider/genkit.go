package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"google.golang.org/genai"
)

// Options configures the Genkit-backed adapters.
type Options struct {
	// Timeout bounds each individual provider call. Zero disables the
	// per-call deadline (the caller's context still applies).
	Timeout time.Duration

	// Retry controls transient-failure retries. Zero value uses
	// DefaultRetryConfig.
	Retry RetryConfig

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Retry.MaxRetries == 0 {
		o.Retry = DefaultRetryConfig()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// GenkitEmbedder adapts a Genkit ai.Embedder to the Embedder capability.
// The embedder is already bound to a concrete model; identical text
// yields vectors of stable dimensionality across calls.
type GenkitEmbedder struct {
	embedder ai.Embedder
	model    string
	opts     Options
}

// NewGenkitEmbedder wraps embedder. model is informational (logging).
func NewGenkitEmbedder(embedder ai.Embedder, model string, opts Options) *GenkitEmbedder {
	return &GenkitEmbedder{embedder: embedder, model: model, opts: opts.withDefaults()}
}

// Embed returns the embedding vector for text, retrying transient
// provider failures with bounded exponential backoff.
func (e *GenkitEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vector []float32

	err := withRetry(ctx, e.opts.Retry, e.opts.Timeout, e.opts.Logger, "embed", func(ctx context.Context) error {
		resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
			Input: []*ai.Document{ai.DocumentFromText(text, nil)},
		})
		if err != nil {
			return err
		}
		if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
			return errEmptyResponse
		}
		vector = resp.Embeddings[0].Embedding
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.opts.Logger.Debug("text embedded", "model", e.model, "dimensions", len(vector))
	return vector, nil
}

// GenkitCompleter adapts Genkit generation to the Completer capability.
type GenkitCompleter struct {
	g     *genkit.Genkit
	model string // provider-qualified, e.g. "googleai/gemini-2.5-flash"
	opts  Options
}

// NewGenkitCompleter creates a completer for the given provider-qualified
// model name.
func NewGenkitCompleter(g *genkit.Genkit, model string, opts Options) *GenkitCompleter {
	return &GenkitCompleter{g: g, model: model, opts: opts.withDefaults()}
}

// Complete generates text for the message sequence. Unset parameters fall
// back to provider defaults.
func (c *GenkitCompleter) Complete(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("complete: %w", errEmptyResponse)
	}

	aiMessages, err := toGenkitMessages(messages)
	if err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}

	var text string
	err = withRetry(ctx, c.opts.Retry, c.opts.Timeout, c.opts.Logger, "complete", func(ctx context.Context) error {
		resp, err := genkit.Generate(ctx, c.g,
			ai.WithModelName(c.model),
			ai.WithMessages(aiMessages...),
			ai.WithConfig(toGenerateConfig(params)),
		)
		if err != nil {
			return err
		}
		if resp.Text() == "" {
			return errEmptyResponse
		}
		text = resp.Text()
		return nil
	})
	if err != nil {
		return "", err
	}

	c.opts.Logger.Debug("completion generated", "model", c.model, "messages", len(messages))
	return text, nil
}

// toGenkitMessages converts conversation messages to Genkit's format.
func toGenkitMessages(messages []Message) ([]*ai.Message, error) {
	out := make([]*ai.Message, len(messages))
	for i, m := range messages {
		var role ai.Role
		switch m.Role {
		case RoleUser:
			role = ai.RoleUser
		case RoleAssistant:
			role = ai.RoleModel
		case RoleSystem:
			role = ai.RoleSystem
		default:
			return nil, fmt.Errorf("unknown message role %q", m.Role)
		}
		out[i] = &ai.Message{
			Role:    role,
			Content: []*ai.Part{ai.NewTextPart(m.Content)},
		}
	}
	return out, nil
}

// toGenerateConfig maps GenerationParams onto the Google GenAI request
// config, leaving unset values to provider defaults.
func toGenerateConfig(params GenerationParams) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if params.Temperature != 0 {
		cfg.Temperature = genai.Ptr(params.Temperature)
	}
	if params.FrequencyPenalty != 0 {
		cfg.FrequencyPenalty = genai.Ptr(params.FrequencyPenalty)
	}
	if params.PresencePenalty != 0 {
		cfg.PresencePenalty = genai.Ptr(params.PresencePenalty)
	}
	if params.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(params.MaxOutputTokens)
	}
	return cfg
}
