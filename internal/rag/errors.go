package rag

import (
	"errors"
	"fmt"
)

// ErrInvalidInput indicates the caller passed something unusable — an
// empty conversation or an out-of-range top-k. Never retried; the
// grounding context is left untouched.
var ErrInvalidInput = errors.New("invalid input")

// Stage names the pipeline step a failure belongs to, so callers can
// decide whether to retry the whole turn or just the failed stage.
type Stage string

const (
	StageQueryRewrite Stage = "query-rewrite"
	StageEmbed        Stage = "embed"
	StageSearch       Stage = "search"
	StageGenerate     Stage = "generate"
)

// StageError wraps a pipeline failure with the stage it occurred in.
// Work completed before the failing stage (accumulated grounding) is
// preserved, so retrying only the failed stage is always safe.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage extracts the stage from err, or "" when err carries none.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
