package domain

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetrievalResult_Less(t *testing.T) {
	results := []RetrievalResult{
		{Chunk: Chunk{Kind: KindPage, SourceID: "b", Index: 0}, Score: 0.7},
		{Chunk: Chunk{Kind: KindNews, SourceID: "z", Index: 2}, Score: 0.7},
		{Chunk: Chunk{Kind: KindPage, SourceID: "a", Index: 1}, Score: 0.7},
		{Chunk: Chunk{Kind: KindPage, SourceID: "a", Index: 0}, Score: 0.7},
		{Chunk: Chunk{Kind: KindFAQ, SourceID: "q", Index: 0}, Score: 0.9},
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Less(results[j]) })

	got := make([]string, len(results))
	for i, r := range results {
		got[i] = r.Chunk.Ref().Key()
	}
	assert.Equal(t, []string{"faq/q", "news/z", "page/a", "page/a", "page/b"}, got)
	assert.Equal(t, 0, results[2].Chunk.Index)
	assert.Equal(t, 1, results[3].Chunk.Index)
}

func TestRetrievalSettings_Validate(t *testing.T) {
	valid := RetrievalSettings{TopK: 5, Threshold: 0.5, MaxContextLength: 4000}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name     string
		settings RetrievalSettings
	}{
		{"zero top k", RetrievalSettings{TopK: 0, Threshold: 0.5, MaxContextLength: 10}},
		{"negative threshold", RetrievalSettings{TopK: 1, Threshold: -0.1, MaxContextLength: 10}},
		{"threshold above one", RetrievalSettings{TopK: 1, Threshold: 1.5, MaxContextLength: 10}},
		{"zero context", RetrievalSettings{TopK: 1, Threshold: 0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.settings.Validate(), ErrInvalidInput)
		})
	}
}

func TestInvalidationReport_OK(t *testing.T) {
	assert.True(t, InvalidationReport{Kind: KindNews}.OK())
	assert.False(t, InvalidationReport{Failed: map[string]string{"news:index": "timeout"}}.OK())
}

func TestValidateEntries(t *testing.T) {
	ref := SourceRef{Kind: KindNews, ID: "1"}
	entry := func(kind ContentKind, id string, idx int, dims int) IndexEntry {
		return IndexEntry{
			Chunk:     Chunk{Kind: kind, SourceID: id, Index: idx},
			Embedding: make([]float32, dims),
		}
	}

	assert.NoError(t, ValidateEntries(ref, nil, 3))
	assert.NoError(t, ValidateEntries(ref, []IndexEntry{entry(KindNews, "1", 0, 3), entry(KindNews, "1", 1, 3)}, 3))
	assert.NoError(t, ValidateEntries(ref, []IndexEntry{entry(KindNews, "1", 0, 7)}, 0))

	assert.ErrorIs(t, ValidateEntries(ref, []IndexEntry{entry(KindNews, "2", 0, 3)}, 3), ErrInvalidInput)
	assert.ErrorIs(t, ValidateEntries(ref, []IndexEntry{entry(KindNews, "1", 1, 3)}, 3), ErrInvalidInput)
	assert.ErrorIs(t, ValidateEntries(ref, []IndexEntry{entry(KindNews, "1", 0, 0)}, 3), ErrInvalidInput)
	assert.ErrorIs(t, ValidateEntries(ref, []IndexEntry{entry(KindNews, "1", 0, 2)}, 3), ErrEmbeddingDimensionMismatch)
}
