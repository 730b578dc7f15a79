package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/campus/internal/core/domain"
	"github.com/custodia-labs/campus/internal/core/ports/driven"
	"github.com/custodia-labs/campus/internal/logger"
	"github.com/custodia-labs/campus/internal/metrics"
	"github.com/custodia-labs/campus/internal/retry"
)

// Ensure EmbeddingClient implements the interface.
var _ driven.EmbeddingService = (*EmbeddingClient)(nil)

// Embedding client defaults.
const (
	DefaultEmbeddingTimeout   = 15 * time.Second
	DefaultEmbeddingRetries   = 2
	DefaultEmbeddingBackoff   = 250 * time.Millisecond
	DefaultEmbeddingBatchSize = 64
)

// EmbeddingClient wraps an embedding service with a per-attempt timeout,
// a bounded retry budget and fail-closed dimension checks. Vectors that
// leave the client always have the configured dimensionality.
type EmbeddingClient struct {
	service    driven.EmbeddingService
	dimensions int
	policy     retry.Policy
	batchSize  int
	metrics    *metrics.Metrics
}

// EmbeddingClientOption configures the client.
type EmbeddingClientOption func(*EmbeddingClient)

// WithEmbeddingTimeout bounds each call to the service.
func WithEmbeddingTimeout(d time.Duration) EmbeddingClientOption {
	return func(c *EmbeddingClient) {
		c.policy.AttemptTimeout = d
	}
}

// WithEmbeddingRetries sets the retry budget and the base backoff.
func WithEmbeddingRetries(retries int, backoff time.Duration) EmbeddingClientOption {
	return func(c *EmbeddingClient) {
		if retries >= 0 {
			c.policy.MaxRetries = retries
		}
		c.policy.BaseDelay = backoff
	}
}

// WithEmbeddingBatchSize caps the texts sent per service call.
func WithEmbeddingBatchSize(n int) EmbeddingClientOption {
	return func(c *EmbeddingClient) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithEmbeddingMetrics records call outcomes.
func WithEmbeddingMetrics(m *metrics.Metrics) EmbeddingClientOption {
	return func(c *EmbeddingClient) {
		c.metrics = m
	}
}

// NewEmbeddingClient wraps service. dimensions is the configured vector size
// every response is checked against.
func NewEmbeddingClient(service driven.EmbeddingService, dimensions int, opts ...EmbeddingClientOption) *EmbeddingClient {
	c := &EmbeddingClient{
		service:    service,
		dimensions: dimensions,
		policy: retry.Policy{
			MaxRetries:     DefaultEmbeddingRetries,
			BaseDelay:      DefaultEmbeddingBackoff,
			AttemptTimeout: DefaultEmbeddingTimeout,
		},
		batchSize: DefaultEmbeddingBatchSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Embed generates the embedding of one text.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings in input order, in service calls of at
// most the configured batch size. Any failure fails the whole batch.
func (c *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		vectors, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (c *EmbeddingClient) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var vectors [][]float32
	attempts, err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		got, err := c.service.EmbedBatch(ctx, batch)
		if err != nil {
			return err
		}
		if err := c.check(got, len(batch)); err != nil {
			return retry.Permanent(err)
		}
		vectors = got
		return nil
	})

	switch {
	case err == nil:
		c.metrics.EmbeddingCall("ok")
		if attempts > 1 {
			logger.Debug("embedding succeeded after %d attempts", attempts)
		}
		return vectors, nil
	case errors.Is(err, domain.ErrEmbeddingDimensionMismatch):
		c.metrics.EmbeddingCall("dimension_mismatch")
		return nil, err
	default:
		c.metrics.EmbeddingCall("unavailable")
		return nil, fmt.Errorf("%w after %d attempts: %w", domain.ErrEmbeddingUnavailable, attempts, err)
	}
}

// check rejects responses that would corrupt the index.
func (c *EmbeddingClient) check(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: requested %d embeddings, received %d",
			domain.ErrEmbeddingDimensionMismatch, want, len(vectors))
	}
	for i, v := range vectors {
		if len(v) != c.dimensions {
			return fmt.Errorf("%w: embedding %d has %d dimensions, expected %d",
				domain.ErrEmbeddingDimensionMismatch, i, len(v), c.dimensions)
		}
	}
	return nil
}

// Dimensions returns the configured vector size.
func (c *EmbeddingClient) Dimensions() int {
	return c.dimensions
}

// ModelName returns the wrapped service's model.
func (c *EmbeddingClient) ModelName() string {
	return c.service.ModelName()
}

// Close releases the wrapped service.
func (c *EmbeddingClient) Close() error {
	return c.service.Close()
}
