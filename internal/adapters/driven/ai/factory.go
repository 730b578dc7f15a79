// Package ai provides factory functions for creating the embedding and
// generation service adapters from configuration.
package ai

import (
	"context"
	"fmt"
	"time"

	openaiembed "github.com/custodia-labs/campus/internal/adapters/driven/embedding/openai"
	openaillm "github.com/custodia-labs/campus/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/campus/internal/config"
	"github.com/custodia-labs/campus/internal/core/domain"
	"github.com/custodia-labs/campus/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// Pinger is implemented by adapters that can check connectivity cheaply.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CreateEmbeddingService creates the embedding service adapter.
// The embedding service is required, so a missing key is an error.
func CreateEmbeddingService(cfg config.EmbeddingConfig) (driven.EmbeddingService, error) {
	svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Timeout:    cfg.Timeout,
		Dimensions: cfg.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Set embedding.api_key or OPENAI_API_KEY",
			domain.ErrEmbeddingUnavailable, err)
	}
	return svc, nil
}

// CreateGenerationService creates the generation service adapter.
// Returns nil if no generation model is configured; chat then answers
// with the fallback message.
func CreateGenerationService(cfg config.GenerationConfig) (driven.GenerationService, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	svc, err := openaillm.NewGenerationService(openaillm.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Timeout:     cfg.Timeout,
		MaxTokens:   cfg.MaxTokens,
		Temperature: float32(cfg.Temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Set generation.api_key or OPENAI_API_KEY",
			domain.ErrGenerationUnavailable, err)
	}
	return svc, nil
}

// Validate checks connectivity of a service that supports it.
// Services without a Ping method are assumed reachable.
func Validate(ctx context.Context, svc any) error {
	p, ok := svc.(Pinger)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return p.Ping(ctx)
}
