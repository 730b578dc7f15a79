package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/campus/internal/core/domain"
)

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Query     string   `json:"query" jsonschema:"the question or phrase to match against site content"`
	TopK      int      `json:"top_k,omitempty" jsonschema:"maximum number of passages (default from server settings)"`
	Threshold *float64 `json:"threshold,omitempty" jsonschema:"minimum cosine similarity between 0 and 1"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Results []PassageOutput `json:"results"`
	Count   int             `json:"count"`
}

// PassageOutput is one retrieved chunk.
type PassageOutput struct {
	Kind     string  `json:"kind"`
	Label    string  `json:"label"`
	SourceID string  `json:"source_id"`
	Chunk    int     `json:"chunk"`
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the visitor question to answer from site content"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer   string          `json:"answer"`
	Degraded bool            `json:"degraded"`
	Sources  []PassageOutput `json:"sources"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Find school website passages most similar to a query",
	}, s.handleRetrieve)

	if s.ports.Chat != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ask",
			Description: "Answer a question using the school website content",
		}, s.handleAsk)
	}
}

// handleRetrieve handles the retrieve tool invocation.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	settings := s.ports.Settings.Get()
	topK := input.TopK
	if topK <= 0 {
		topK = settings.TopK
	}
	threshold := settings.Threshold
	if input.Threshold != nil {
		threshold = *input.Threshold
	}

	results, err := s.ports.Retrieval.Retrieve(ctx, input.Query, topK, threshold)
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	return nil, RetrieveOutput{
		Results: s.passages(results),
		Count:   len(results),
	}, nil
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	resp, err := s.ports.Chat.Ask(ctx, domain.ChatRequest{Message: input.Question})
	if err != nil {
		return nil, AskOutput{}, err
	}
	return nil, AskOutput{
		Answer:   resp.Answer,
		Degraded: resp.Degraded,
		Sources:  s.passages(resp.Sources),
	}, nil
}

func (s *Server) passages(results []domain.RetrievalResult) []PassageOutput {
	out := make([]PassageOutput, len(results))
	for i, r := range results {
		out[i] = PassageOutput{
			Kind:     string(r.Chunk.Kind),
			Label:    s.ports.Kinds.Label(r.Chunk.Kind),
			SourceID: r.Chunk.SourceID,
			Chunk:    r.Chunk.Index,
			Score:    r.Score,
			Text:     r.Chunk.Text,
		}
	}
	return out
}
