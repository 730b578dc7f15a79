package driven

import (
	"context"

	"github.com/custodia-labs/campus/internal/core/domain"
)

// GenerationService produces assistant answers from assembled context.
// This is an optional service - when nil, chat returns the fallback answer.
type GenerationService interface {
	// Generate produces an answer for the request.
	Generate(ctx context.Context, req domain.GenerationRequest) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}
