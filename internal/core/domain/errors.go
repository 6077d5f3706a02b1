package domain

import "errors"

// Sentinel errors. Adapters wrap them with %w so callers can test with
// errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown note source, provider or strategy.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrLLMUnavailable means no chat model is configured or reachable.
	// Chat, conversation summaries and tree/graph building need one.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable means no embedding model is configured or
	// reachable. Scoring falls back to keywords only.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrBackendNotReady means a retrieval backend has not been built or
	// loaded. The router skips such backends.
	ErrBackendNotReady = errors.New("retrieval backend not ready")

	// ErrDimensionMismatch means vectors disagree with the configured
	// model's dimensionality. A cached set that mismatches is rebuilt.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrCacheMiss means no valid cached entry exists for a key.
	ErrCacheMiss = errors.New("cache miss")

	// ErrStreamTruncated means a model stream ended without its
	// end-of-stream signal.
	ErrStreamTruncated = errors.New("stream ended before completion")

	ErrImageSearchUnavailable = errors.New("image search unavailable")
)
