// Package provider defines the small capability interfaces for the
// external model providers — embedding and completion — plus the Genkit
// adapters that implement them in production. Pipelines depend only on
// the interfaces so tests can substitute deterministic doubles.
package provider

import "context"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// GenerationParams are the tunable knobs for a completion call.
// Zero values mean "use the provider default".
type GenerationParams struct {
	Temperature      float32
	FrequencyPenalty float32
	PresencePenalty  float32
	MaxOutputTokens  int
}

// Embedder maps text to a fixed-length vector. Identical text through the
// same embedder yields vectors of stable dimensionality for the lifetime
// of an index.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Completer maps a message sequence plus generation parameters to
// generated text.
type Completer interface {
	Complete(ctx context.Context, messages []Message, params GenerationParams) (string, error)
}
