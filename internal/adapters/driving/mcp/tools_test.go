package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/campus/internal/core/domain"
)

func TestServer_handleRetrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("returns passages with labels", func(t *testing.T) {
		retrieval := &mockRetrievalService{
			results: []domain.RetrievalResult{{
				Chunk: domain.Chunk{Kind: domain.KindNews, SourceID: "42", Index: 1, Text: "Sports day is on Friday"},
				Score: 0.91,
			}},
		}
		ports := testPorts(t)
		ports.Retrieval = retrieval
		server, err := NewServer(ports)
		require.NoError(t, err)

		_, output, err := server.handleRetrieve(ctx, nil, RetrieveInput{Query: "sports day"})

		require.NoError(t, err)
		assert.Equal(t, 1, output.Count)
		assert.Equal(t, PassageOutput{
			Kind: "news", Label: "News", SourceID: "42", Chunk: 1, Score: 0.91, Text: "Sports day is on Friday",
		}, output.Results[0])
	})

	t.Run("defaults come from settings", func(t *testing.T) {
		retrieval := &mockRetrievalService{}
		ports := testPorts(t)
		ports.Retrieval = retrieval
		server, err := NewServer(ports)
		require.NoError(t, err)

		_, _, err = server.handleRetrieve(ctx, nil, RetrieveInput{Query: "term dates"})

		require.NoError(t, err)
		assert.Equal(t, 5, retrieval.topK)
		assert.Equal(t, 0.5, retrieval.threshold)
	})

	t.Run("explicit zero threshold is honoured", func(t *testing.T) {
		retrieval := &mockRetrievalService{}
		ports := testPorts(t)
		ports.Retrieval = retrieval
		server, err := NewServer(ports)
		require.NoError(t, err)

		zero := 0.0
		_, _, err = server.handleRetrieve(ctx, nil, RetrieveInput{Query: "uniform", TopK: 2, Threshold: &zero})

		require.NoError(t, err)
		assert.Equal(t, 2, retrieval.topK)
		assert.Equal(t, 0.0, retrieval.threshold)
	})

	t.Run("returns error on retrieval failure", func(t *testing.T) {
		ports := testPorts(t)
		ports.Retrieval = &mockRetrievalService{err: errors.New("retrieval failed")}
		server, err := NewServer(ports)
		require.NoError(t, err)

		_, _, err = server.handleRetrieve(ctx, nil, RetrieveInput{Query: "test"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "retrieval failed")
	})
}

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()
	chat := &mockChatService{resp: &domain.ChatResponse{
		Answer:   "School opens at 8:30.",
		Degraded: false,
		Sources: []domain.RetrievalResult{{
			Chunk: domain.Chunk{Kind: domain.KindFAQ, SourceID: "7", Text: "Gates open at 8:30"},
			Score: 0.8,
		}},
	}}
	ports := testPorts(t)
	ports.Chat = chat
	server, err := NewServer(ports)
	require.NoError(t, err)

	_, output, err := server.handleAsk(ctx, nil, AskInput{Question: "When does school open?"})

	require.NoError(t, err)
	assert.Equal(t, "When does school open?", chat.last.Message)
	assert.Equal(t, "School opens at 8:30.", output.Answer)
	require.Len(t, output.Sources, 1)
	assert.Equal(t, "FAQ", output.Sources[0].Label)
}
