package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedFormat indicates an export format with no available renderer.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrUnsupportedType indicates an unknown provider or source type.
	ErrUnsupportedType = errors.New("unsupported type")

	// Source Errors.

	// ErrMissingCredentials indicates a provider was called without its API key.
	// Adapters return it before any network I/O.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrSourceFailed matches every *SourceError via errors.Is.
	ErrSourceFailed = errors.New("source failed")

	// ErrSourcesExhausted indicates every source in the fallback order was tried
	// and at least one of them failed.
	ErrSourcesExhausted = errors.New("all sources exhausted")

	// ErrRateLimited indicates the provider answered with HTTP 429.
	ErrRateLimited = errors.New("rate limited")

	// Generation Errors.

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrGeneration indicates the text generator failed to produce output.
	// It is fatal to a research run.
	ErrGeneration = errors.New("text generation failed")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Local retrieval is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrIndexCorrupt indicates the persisted vector index could not be decoded.
	// Callers recover by treating the index as empty.
	ErrIndexCorrupt = errors.New("vector index corrupt")
)

// SourceError reports a failed call to one external search source.
// It wraps the underlying cause and always matches ErrSourceFailed.
type SourceError struct {
	// Source is the name of the failing source (e.g. "tavily").
	Source string

	// StatusCode is the HTTP status when the failure was a non-2xx response.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

// NewSourceError wraps err as a failure of the named source.
func NewSourceError(source string, err error) *SourceError {
	return &SourceError{Source: source, Err: err}
}

// Error implements error.
func (e *SourceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying cause.
func (e *SourceError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrSourceFailed, or ErrRateLimited for an
// HTTP 429 answer.
func (e *SourceError) Is(target error) bool {
	return target == ErrSourceFailed || (target == ErrRateLimited && e.StatusCode == 429)
}
