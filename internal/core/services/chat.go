package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/campus/internal/core/domain"
	"github.com/custodia-labs/campus/internal/core/ports/driven"
	"github.com/custodia-labs/campus/internal/core/ports/driving"
	"github.com/custodia-labs/campus/internal/logger"
	"github.com/custodia-labs/campus/internal/metrics"
	"github.com/custodia-labs/campus/internal/retry"
)

// Ensure ChatService implements the interface.
var _ driving.ChatService = (*ChatService)(nil)

// Chat defaults.
const (
	DefaultHistoryTurns      = 6
	DefaultGenerationTimeout = 30 * time.Second
	DefaultGenerationRetries = 2
	DefaultGenerationBackoff = 500 * time.Millisecond
)

// ChatService answers visitor questions grounded on retrieved site content.
// Retrieval and generation failures degrade the answer instead of failing
// the request.
type ChatService struct {
	retriever    driving.RetrievalService
	assembler    *ContextAssembler
	generator    driven.GenerationService
	tuning       *Tuning
	systemPrompt string
	historyTurns int
	policy       retry.Policy
	metrics      *metrics.Metrics
}

// ChatServiceOption configures the service.
type ChatServiceOption func(*ChatService)

// WithSystemPrompt replaces the assistant's framing prompt.
func WithSystemPrompt(prompt string) ChatServiceOption {
	return func(s *ChatService) {
		if strings.TrimSpace(prompt) != "" {
			s.systemPrompt = prompt
		}
	}
}

// WithHistoryTurns bounds the prior turns sent to the model.
func WithHistoryTurns(n int) ChatServiceOption {
	return func(s *ChatService) {
		if n >= 0 {
			s.historyTurns = n
		}
	}
}

// WithGenerationRetries sets the retry budget and base backoff.
func WithGenerationRetries(retries int, backoff time.Duration) ChatServiceOption {
	return func(s *ChatService) {
		if retries >= 0 {
			s.policy.MaxRetries = retries
		}
		s.policy.BaseDelay = backoff
	}
}

// WithGenerationTimeout bounds each generation attempt.
func WithGenerationTimeout(d time.Duration) ChatServiceOption {
	return func(s *ChatService) {
		s.policy.AttemptTimeout = d
	}
}

// WithChatMetrics records chat outcomes.
func WithChatMetrics(m *metrics.Metrics) ChatServiceOption {
	return func(s *ChatService) {
		s.metrics = m
	}
}

// NewChatService creates a chat service. generator may be nil, in which
// case every answer is the fallback message.
func NewChatService(
	retriever driving.RetrievalService,
	assembler *ContextAssembler,
	generator driven.GenerationService,
	tuning *Tuning,
	opts ...ChatServiceOption,
) *ChatService {
	s := &ChatService{
		retriever:    retriever,
		assembler:    assembler,
		generator:    generator,
		tuning:       tuning,
		historyTurns: DefaultHistoryTurns,
		policy: retry.Policy{
			MaxRetries:     DefaultGenerationRetries,
			BaseDelay:      DefaultGenerationBackoff,
			AttemptTimeout: DefaultGenerationTimeout,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask answers one chat turn.
func (s *ChatService) Ask(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", domain.ErrInvalidInput)
	}
	resp := &domain.ChatResponse{RequestID: uuid.NewString()}
	settings := s.tuning.Get()

	// 1. Retrieve; a failure degrades to empty context
	results, err := s.retriever.Retrieve(ctx, message, settings.TopK, settings.Threshold)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("chat %s: retrieval failed, answering without context: %v", resp.RequestID, err)
		resp.Degraded = true
		results = nil
	}
	resp.Sources = results

	// 2. Assemble bounded context
	contextText := s.assembler.Assemble(results, settings.MaxContextLength)

	// 3. Generate, falling back to the fixed message
	answer, err := s.generate(ctx, domain.GenerationRequest{
		SystemPrompt: s.prompt(),
		Context:      contextText,
		History:      boundHistory(req.History, s.historyTurns),
		Message:      message,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Error("chat %s: %v", resp.RequestID, err)
		resp.Answer = domain.FallbackAnswer
		resp.Degraded = true
		s.metrics.ChatRequest("fallback")
		return resp, nil
	}

	resp.Answer = answer
	if resp.Degraded {
		s.metrics.ChatRequest("degraded")
	} else {
		s.metrics.ChatRequest("ok")
	}
	return resp, nil
}

func (s *ChatService) generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	if s.generator == nil {
		return "", fmt.Errorf("%w: no generation model configured", domain.ErrGenerationUnavailable)
	}

	var answer string
	attempts, err := retry.Do(ctx, s.policy, func(ctx context.Context) error {
		out, err := s.generator.Generate(ctx, req)
		if err != nil {
			return err
		}
		if strings.TrimSpace(out) == "" {
			return errors.New("empty answer")
		}
		answer = strings.TrimSpace(out)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w after %d attempts: %w", domain.ErrGenerationUnavailable, attempts, err)
	}
	return answer, nil
}

func (s *ChatService) prompt() string {
	if s.systemPrompt != "" {
		return s.systemPrompt
	}
	return "You are the assistant on a school website. Answer using only the provided context."
}

// boundHistory keeps the last n well-formed turns.
func boundHistory(history []domain.ChatTurn, n int) []domain.ChatTurn {
	if n <= 0 {
		return nil
	}
	kept := make([]domain.ChatTurn, 0, len(history))
	for _, t := range history {
		if t.Role != domain.RoleUser && t.Role != domain.RoleAssistant {
			continue
		}
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		kept = append(kept, t)
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return kept
}
