package driven

import "github.com/custodia-labs/campus/internal/core/domain"

// Chunker splits normalised text into overlapping chunks.
type Chunker interface {
	// Name returns the chunker name for logging.
	Name() string

	// Chunk splits text into chunks attributed to ref.
	// Identical input always yields identical chunks.
	Chunk(ref domain.SourceRef, text string) ([]domain.Chunk, error)
}
