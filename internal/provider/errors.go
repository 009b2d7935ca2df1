package provider

import (
	"context"
	"errors"
	"strings"
)

// Sentinel errors classifying provider failures. Both are transient:
// callers retry them a bounded number of times before surfacing.
var (
	// ErrTimeout indicates a provider call exceeded its deadline.
	ErrTimeout = errors.New("provider timeout")

	// ErrUnavailable indicates a connection, quota, or auth failure.
	ErrUnavailable = errors.New("provider unavailable")
)

// transientPatterns groups error substrings by category, matched
// case-insensitively against err.Error().
//
// NOTE: string matching is used because Genkit and the provider SDKs do
// not expose typed errors for transient failures. Re-evaluate if Genkit
// adds structured error types.
var transientPatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},      // rate limiting
	{"500", "502", "503", "504", "unavailable"},  // transient server errors
	{"connection reset", "timeout", "temporary"}, // network errors
}

// Classify wraps err with the matching sentinel so callers can branch
// with errors.Is. Non-transient errors are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable) {
		return err
	}

	msg := strings.ToLower(err.Error())
	for _, group := range transientPatterns {
		for _, pattern := range group {
			if strings.Contains(msg, pattern) {
				return errors.Join(ErrUnavailable, err)
			}
		}
	}
	return err
}

// Retryable reports whether err is transient and worth another attempt.
func Retryable(err error) bool {
	err = Classify(err)
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable)
}
