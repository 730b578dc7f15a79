package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/custodia-labs/campus/internal/core/domain"
	"github.com/custodia-labs/campus/internal/logger"
)

type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Message string     `json:"message"`
	History []chatTurn `json:"history,omitempty"`
}

type passage struct {
	Kind     string  `json:"kind"`
	Label    string  `json:"label"`
	SourceID string  `json:"source_id"`
	Chunk    int     `json:"chunk"`
	Score    float64 `json:"score"`
	Text     string  `json:"text,omitempty"`
}

type chatResponse struct {
	RequestID string    `json:"request_id"`
	Answer    string    `json:"answer"`
	Degraded  bool      `json:"degraded"`
	Sources   []passage `json:"sources"`
}

type retrieveRequest struct {
	Query     string   `json:"query"`
	TopK      *int     `json:"top_k,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

type retrieveResponse struct {
	Results []passage `json:"results"`
}

type syncStatusResponse struct {
	Kind        string     `json:"kind"`
	ID          string     `json:"id"`
	Phase       string     `json:"phase"`
	Pending     bool       `json:"pending"`
	LastError   string     `json:"last_error,omitempty"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
	Chunks      int        `json:"chunks"`
}

type reindexRequest struct {
	Kinds []string `json:"kinds,omitempty"`
}

type acceptedResponse struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
}

// chat answers one visitor question.
func (s *Server) chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	history := make([]domain.ChatTurn, len(req.History))
	for i, t := range req.History {
		history[i] = domain.ChatTurn{Role: domain.ChatRole(t.Role), Content: t.Content}
	}

	resp, err := s.svc.Chat.Ask(c.Request().Context(), domain.ChatRequest{
		Message: req.Message,
		History: history,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, chatResponse{
		RequestID: resp.RequestID,
		Answer:    resp.Answer,
		Degraded:  resp.Degraded,
		Sources:   s.passages(resp.Sources, false),
	})
}

// retrieve returns ranked passages for a query.
func (s *Server) retrieve(c echo.Context) error {
	var req retrieveRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	settings := s.svc.Settings.Get()
	topK, threshold := settings.TopK, settings.Threshold
	if req.TopK != nil {
		topK = *req.TopK
	}
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	results, err := s.svc.Retrieval.Retrieve(c.Request().Context(), req.Query, topK, threshold)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, retrieveResponse{Results: s.passages(results, true)})
}

// mutation accepts a CMS change notification and queues its processing.
func (s *Server) mutation(c echo.Context) error {
	var notice domain.MutationNotice
	if err := c.Bind(&notice); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	m, err := notice.Mutation()
	if err != nil {
		return err
	}
	if s.svc.Kinds != nil && !s.svc.Kinds.Has(m.Ref.Kind) {
		return c.JSON(http.StatusAccepted, acceptedResponse{Status: "ignored"})
	}

	m.ID = c.Response().Header().Get(echo.HeaderXRequestID)
	if err := s.svc.Publisher.Publish(c.Request().Context(), m); err != nil {
		return err
	}
	s.svc.Metrics.MutationReceived("http", string(m.Op))
	return c.JSON(http.StatusAccepted, acceptedResponse{Status: "accepted", ID: m.ID})
}

// syncStatus reports the sync state of one record.
func (s *Server) syncStatus(c echo.Context) error {
	ref := domain.SourceRef{Kind: domain.ContentKind(c.Param("kind")), ID: c.Param("id")}
	if err := ref.Validate(); err != nil {
		return err
	}
	if s.svc.Kinds != nil && !s.svc.Kinds.Has(ref.Kind) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, ref.Kind)
	}

	st := s.svc.Sync.Status(ref)
	resp := syncStatusResponse{
		Kind:      string(ref.Kind),
		ID:        ref.ID,
		Phase:     string(st.Phase),
		Pending:   st.Pending,
		LastError: st.LastError,
		Chunks:    st.Chunks,
	}
	if !st.LastSuccess.IsZero() {
		resp.LastSuccess = &st.LastSuccess
	}
	return c.JSON(http.StatusOK, resp)
}

// reindex starts a sweep in the background.
func (s *Server) reindex(c echo.Context) error {
	var req reindexRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
	}

	kinds := make([]domain.ContentKind, len(req.Kinds))
	for i, k := range req.Kinds {
		kinds[i] = domain.ContentKind(k)
		if s.svc.Kinds != nil && !s.svc.Kinds.Has(kinds[i]) {
			return fmt.Errorf("%w: %s", domain.ErrUnsupportedSourceKind, k)
		}
	}

	go func(ctx context.Context) {
		report, err := s.svc.Sync.Reindex(ctx, kinds...)
		if err != nil {
			logger.Error("http: reindex failed: %v", err)
			return
		}
		logger.Info("http: reindex done in %s: %d synced, %d retired, %d failed",
			report.Duration, report.Synced, report.Retired, report.Failed)
	}(s.background)

	return c.JSON(http.StatusAccepted, acceptedResponse{Status: "accepted"})
}

func (s *Server) passages(results []domain.RetrievalResult, withText bool) []passage {
	out := make([]passage, len(results))
	for i, r := range results {
		out[i] = passage{
			Kind:     string(r.Chunk.Kind),
			Label:    s.svc.Kinds.Label(r.Chunk.Kind),
			SourceID: r.Chunk.SourceID,
			Chunk:    r.Chunk.Index,
			Score:    r.Score,
		}
		if withText {
			out[i].Text = r.Chunk.Text
		}
	}
	return out
}
