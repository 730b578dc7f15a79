package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/campus/internal/core/domain"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	results   []domain.RetrievalResult
	err       error
	topK      int
	threshold float64
}

func (m *mockRetrievalService) Retrieve(
	_ context.Context,
	_ string,
	topK int,
	threshold float64,
) ([]domain.RetrievalResult, error) {
	m.topK, m.threshold = topK, threshold
	return m.results, m.err
}

// mockChatService is a mock implementation of driving.ChatService.
type mockChatService struct {
	resp *domain.ChatResponse
	err  error
	last domain.ChatRequest
}

func (m *mockChatService) Ask(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	m.last = req
	return m.resp, m.err
}

// mockSyncCoordinator is a mock implementation of driving.SyncCoordinator.
type mockSyncCoordinator struct {
	status domain.SyncStatus
}

func (m *mockSyncCoordinator) Enqueue(domain.Mutation) {}

func (m *mockSyncCoordinator) SyncRecord(context.Context, domain.Mutation) error { return nil }

func (m *mockSyncCoordinator) Reindex(context.Context, ...domain.ContentKind) (domain.ReindexReport, error) {
	return domain.ReindexReport{}, nil
}

func (m *mockSyncCoordinator) Status(ref domain.SourceRef) domain.SyncStatus {
	st := m.status
	st.Ref = ref
	return st
}

// fixedSettings implements SettingsProvider.
type fixedSettings domain.RetrievalSettings

func (f fixedSettings) Get() domain.RetrievalSettings { return domain.RetrievalSettings(f) }

func testKinds(t *testing.T) *domain.KindRegistry {
	t.Helper()
	reg, err := domain.NewKindRegistry(
		domain.KindSpec{Kind: domain.KindNews, Label: "News", FieldPaths: []string{"title"}, CacheTags: []string{"news"}},
		domain.KindSpec{Kind: domain.KindFAQ, Label: "FAQ", FieldPaths: []string{"question"}},
	)
	require.NoError(t, err)
	return reg
}

func testPorts(t *testing.T) *Ports {
	t.Helper()
	return &Ports{
		Retrieval: &mockRetrievalService{},
		Settings:  fixedSettings{TopK: 5, Threshold: 0.5, MaxContextLength: 4000},
		Kinds:     testKinds(t),
	}
}
