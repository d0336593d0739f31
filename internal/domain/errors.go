package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidQuery signals rejected query parameters (top_k, filters, query text).
	ErrInvalidQuery = errors.New("invalid query parameters")
	// ErrIndexingFailure signals a failed vector index (re)build.
	ErrIndexingFailure = errors.New("indexing failure")
	// ErrIndexNotReady signals that the vector index has not been built yet or is being rebuilt.
	ErrIndexNotReady = errors.New("index not ready")
	// ErrRankingUnavailable signals that LLM ranking could not produce a result.
	ErrRankingUnavailable = errors.New("ranking unavailable")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrLLMProviderError signals a failed call to the ranking LLM.
	ErrLLMProviderError = errors.New("llm provider error")
)

// IndexingError wraps ErrIndexingFailure with the build stage that failed.
type IndexingError struct {
	Stage string
	Err   error
}

func (e *IndexingError) Error() string {
	return fmt.Sprintf("%s at %s: %v", ErrIndexingFailure.Error(), e.Stage, e.Err)
}

// Unwrap exposes both the sentinel and the cause to errors.Is / errors.As.
func (e *IndexingError) Unwrap() []error { return []error{ErrIndexingFailure, e.Err} }

// NewIndexingError creates an indexing error for the given stage.
func NewIndexingError(stage string, err error) error {
	return &IndexingError{Stage: stage, Err: err}
}
