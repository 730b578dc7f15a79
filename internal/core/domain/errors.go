package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// Pipeline Errors.

	// ErrUnsupportedSourceKind indicates a record whose kind has no registry entry.
	// Callers log and skip the record.
	ErrUnsupportedSourceKind = errors.New("unsupported source kind")

	// ErrInvalidChunkConfig indicates chunk size and overlap violate size > overlap >= 0.
	ErrInvalidChunkConfig = errors.New("invalid chunk config")

	// ErrIndexWriteFailed indicates the vector index rejected a write.
	// Previously committed entries for the source are left in place.
	ErrIndexWriteFailed = errors.New("index write failed")

	// External Service Errors.

	// ErrEmbeddingUnavailable indicates the embedding service could not be
	// reached within the retry budget.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrEmbeddingDimensionMismatch indicates the embedding service returned a
	// vector whose length differs from the configured dimensionality.
	ErrEmbeddingDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrGenerationUnavailable indicates the generation service could not be
	// reached within the retry budget.
	ErrGenerationUnavailable = errors.New("generation service unavailable")

	// ErrCacheUnavailable indicates the cache store could not serve a request.
	ErrCacheUnavailable = errors.New("cache store unavailable")
)
