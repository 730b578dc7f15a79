package httpapi

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/campus/internal/core/domain"
)

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

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	results   []domain.RetrievalResult
	err       error
	topK      int
	threshold float64
}

func (m *mockRetrievalService) Retrieve(_ context.Context, _ string, topK int, threshold float64) ([]domain.RetrievalResult, error) {
	m.topK, m.threshold = topK, threshold
	return m.results, m.err
}

// mockSyncCoordinator is a mock implementation of driving.SyncCoordinator.
type mockSyncCoordinator struct {
	mu       sync.Mutex
	status   domain.SyncStatus
	reindex  chan []domain.ContentKind
	reported domain.ReindexReport
}

func (m *mockSyncCoordinator) Enqueue(domain.Mutation) {}

func (m *mockSyncCoordinator) SyncRecord(context.Context, domain.Mutation) error { return nil }

func (m *mockSyncCoordinator) Reindex(_ context.Context, kinds ...domain.ContentKind) (domain.ReindexReport, error) {
	if m.reindex != nil {
		m.reindex <- kinds
	}
	return m.reported, nil
}

func (m *mockSyncCoordinator) Status(ref domain.SourceRef) domain.SyncStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.status
	st.Ref = ref
	return st
}

// mockPublisher is a mock implementation of driving.MutationPublisher.
type mockPublisher struct {
	published []domain.Mutation
	err       error
}

func (m *mockPublisher) Publish(_ context.Context, mut domain.Mutation) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, mut)
	return nil
}

// fixedSettings implements SettingsProvider.
type fixedSettings domain.RetrievalSettings

func (f fixedSettings) Get() domain.RetrievalSettings { return domain.RetrievalSettings(f) }

type testDeps struct {
	chat      *mockChatService
	retrieval *mockRetrievalService
	sync      *mockSyncCoordinator
	publisher *mockPublisher
}

func newTestServer(t *testing.T, cfg Config) (*Server, *testDeps) {
	t.Helper()
	kinds, err := domain.NewKindRegistry(
		domain.KindSpec{Kind: domain.KindNews, Label: "News", FieldPaths: []string{"title"}},
		domain.KindSpec{Kind: domain.KindFAQ, Label: "FAQ", FieldPaths: []string{"question"}},
	)
	require.NoError(t, err)

	deps := &testDeps{
		chat:      &mockChatService{resp: &domain.ChatResponse{RequestID: "r1", Answer: "ok"}},
		retrieval: &mockRetrievalService{},
		sync:      &mockSyncCoordinator{},
		publisher: &mockPublisher{},
	}
	s, err := New(cfg, Services{
		Chat:      deps.chat,
		Retrieval: deps.retrieval,
		Sync:      deps.sync,
		Publisher: deps.publisher,
		Settings:  fixedSettings{TopK: 5, Threshold: 0.5, MaxContextLength: 4000},
		Kinds:     kinds,
	})
	require.NoError(t, err)
	t.Cleanup(s.cancel)
	return s, deps
}
