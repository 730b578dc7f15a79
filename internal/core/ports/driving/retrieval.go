package driving

import (
	"context"

	"github.com/custodia-labs/campus/internal/core/domain"
)

// RetrievalService ranks indexed chunks against a question.
type RetrievalService interface {
	// Retrieve returns at most topK chunks scoring at least threshold,
	// best first. An empty result is not an error.
	Retrieve(ctx context.Context, query string, topK int, threshold float64) ([]domain.RetrievalResult, error)
}

// ChatService answers questions grounded on retrieved context.
type ChatService interface {
	// Ask answers one chat turn. Service failures degrade the response
	// instead of returning an error; errors are reserved for invalid input.
	Ask(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error)
}
