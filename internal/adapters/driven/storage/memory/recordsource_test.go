package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/campus/internal/core/domain"
)

func TestRecordSource_PutGet(t *testing.T) {
	ctx := context.Background()
	src := NewRecordSource()
	src.Put(domain.SourceRecord{Kind: domain.KindFAQ, ID: "1", Fields: map[string]any{"question": "When is lunch?"}})

	rec, err := src.Get(ctx, domain.SourceRef{Kind: domain.KindFAQ, ID: "1"})
	require.NoError(t, err)
	assert.Equal(t, "When is lunch?", rec.Fields["question"])

	rec.Fields["question"] = "mutated"
	again, _ := src.Get(ctx, domain.SourceRef{Kind: domain.KindFAQ, ID: "1"})
	assert.Equal(t, "When is lunch?", again.Fields["question"], "returned records are copies")
}

func TestRecordSource_GetMissing(t *testing.T) {
	_, err := NewRecordSource().Get(context.Background(), domain.SourceRef{Kind: domain.KindFAQ, ID: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordSource_RemoveAndList(t *testing.T) {
	ctx := context.Background()
	src := NewRecordSource()
	src.Put(domain.SourceRecord{Kind: domain.KindNews, ID: "b"})
	src.Put(domain.SourceRecord{Kind: domain.KindNews, ID: "a"})
	src.Put(domain.SourceRecord{Kind: domain.KindEvent, ID: "c"})

	src.Remove(domain.SourceRef{Kind: domain.KindNews, ID: "b"})

	ids, err := src.ListIDs(ctx, domain.KindNews)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)
}

func TestRecordSource_LoadJSON(t *testing.T) {
	src := NewRecordSource()
	data := `[
		{"kind": "news", "id": "10", "updated_at": "2026-01-12T09:00:00Z", "fields": {"title": "Spring concert"}},
		{"kind": "faq", "id": "2", "fields": {"question": "Is there a breakfast club?"}}
	]`

	n, err := src.LoadJSON(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rec, err := src.Get(context.Background(), domain.SourceRef{Kind: domain.KindNews, ID: "10"})
	require.NoError(t, err)
	assert.Equal(t, "Spring concert", rec.Fields["title"])
	assert.Equal(t, 2026, rec.UpdatedAt.Year())
}

func TestRecordSource_LoadJSONInvalid(t *testing.T) {
	_, err := NewRecordSource().LoadJSON(strings.NewReader(`[{"kind": "news"}]`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = NewRecordSource().LoadJSON(strings.NewReader("not json"))
	assert.Error(t, err)
}
