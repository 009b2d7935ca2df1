// Package rag implements the retrieval-augmented grounding pipeline:
// turning a conversation into a search query, retrieving catalog
// documents, accumulating a per-turn grounding trace, and generating the
// grounded answer.
package rag

import (
	"github.com/google/uuid"

	"github.com/outfitter-ai/outfitter/internal/search"
)

// Thought is one trace entry describing a pipeline decision, such as the
// search query generated for a retrieval.
type Thought struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// GroundingContext accumulates the trace of one conversational turn.
// Every Ground call appends exactly one thought and one grounding batch;
// nothing is ever overwritten, so a turn that retrieves several times
// keeps every stage's trace.
//
// A context belongs to exactly one in-flight turn. Appends are not
// synchronized: a turn that grounds more than once must do so
// sequentially, and the append order is the call order.
type GroundingContext struct {
	// TurnID correlates the trace with logs and spans.
	TurnID string `json:"turn_id"`

	// Overrides carries caller-supplied knobs, e.g. "top" to change the
	// retrieval depth for this turn.
	Overrides map[string]any `json:"overrides,omitempty"`

	Thoughts  []Thought      `json:"thoughts"`
	Grounding [][]search.Hit `json:"grounding"`
}

// NewContext creates an empty grounding context for one turn.
func NewContext() *GroundingContext {
	return &GroundingContext{TurnID: uuid.NewString()}
}

// AddThought appends one trace entry.
func (c *GroundingContext) AddThought(title, description string) {
	c.Thoughts = append(c.Thoughts, Thought{Title: title, Description: description})
}

// AddGrounding appends one retrieval batch. An empty batch is appended
// as-is: "no results" stays distinguishable from "no retrieval ran".
func (c *GroundingContext) AddGrounding(batch []search.Hit) {
	c.Grounding = append(c.Grounding, batch)
}

// LatestGrounding returns the most recent batch, or nil when no
// retrieval has run.
func (c *GroundingContext) LatestGrounding() []search.Hit {
	if len(c.Grounding) == 0 {
		return nil
	}
	return c.Grounding[len(c.Grounding)-1]
}

// AllGrounding flattens every batch in append order.
func (c *GroundingContext) AllGrounding() []search.Hit {
	var out []search.Hit
	for _, batch := range c.Grounding {
		out = append(out, batch...)
	}
	return out
}

// TopOverride returns the "top" override when present and usable,
// otherwise fallback. Overrides arrive untyped, so both int and float64
// (JSON numbers) are accepted.
func (c *GroundingContext) TopOverride(fallback int) int {
	raw, ok := c.Overrides["top"]
	if !ok {
		return fallback
	}
	switch v := raw.(type) {
	case int:
		if v >= 1 {
			return v
		}
	case float64:
		if v >= 1 {
			return int(v)
		}
	}
	return fallback
}
