package domain

import "fmt"

// RetrievalSettings tune the query path.
type RetrievalSettings struct {
	// TopK caps the number of results.
	TopK int

	// Threshold is the minimum cosine similarity for a result.
	Threshold float64

	// MaxContextLength caps the assembled context, in characters.
	MaxContextLength int
}

// Validate checks TopK >= 1, 0 <= Threshold <= 1 and a positive context budget.
func (s RetrievalSettings) Validate() error {
	if s.TopK < 1 {
		return fmt.Errorf("%w: top_k must be at least 1, got %d", ErrInvalidInput, s.TopK)
	}
	if s.Threshold < 0 || s.Threshold > 1 {
		return fmt.Errorf("%w: threshold must be within [0,1], got %v", ErrInvalidInput, s.Threshold)
	}
	if s.MaxContextLength < 1 {
		return fmt.Errorf("%w: max context length must be positive, got %d", ErrInvalidInput, s.MaxContextLength)
	}
	return nil
}
