package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/campus/internal/core/domain"
	"github.com/custodia-labs/campus/internal/core/ports/driven"
)

// Ensure RecordSource implements the interface.
var _ driven.RecordSource = (*RecordSource)(nil)

// RecordSource is an in-memory implementation of driven.RecordSource.
// It backs tests and local runs seeded from a JSON fixtures file.
type RecordSource struct {
	mu      sync.RWMutex
	records map[domain.SourceRef]domain.SourceRecord
}

// NewRecordSource creates an empty record source.
func NewRecordSource() *RecordSource {
	return &RecordSource{
		records: make(map[domain.SourceRef]domain.SourceRecord),
	}
}

// Put stores or replaces a record.
func (s *RecordSource) Put(rec domain.SourceRecord) {
	rec.Fields = maps.Clone(rec.Fields)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Ref()] = rec
}

// Remove deletes a record.
func (s *RecordSource) Remove(ref domain.SourceRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, ref)
}

// Get returns a copy of the record.
func (s *RecordSource) Get(_ context.Context, ref domain.SourceRef) (*domain.SourceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	rec.Fields = maps.Clone(rec.Fields)
	return &rec, nil
}

// ListIDs returns the sorted IDs of every record of kind.
func (s *RecordSource) ListIDs(_ context.Context, kind domain.ContentKind) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for ref := range s.records {
		if ref.Kind == kind {
			ids = append(ids, ref.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// fixture is one record in a JSON fixtures file.
type fixture struct {
	Kind      string         `json:"kind"`
	ID        string         `json:"id"`
	UpdatedAt time.Time      `json:"updated_at"`
	Fields    map[string]any `json:"fields"`
}

// LoadJSON seeds the source from a JSON array of
// {"kind", "id", "updated_at", "fields"} objects and returns the count loaded.
func (s *RecordSource) LoadJSON(r io.Reader) (int, error) {
	var fixtures []fixture
	if err := json.NewDecoder(r).Decode(&fixtures); err != nil {
		return 0, fmt.Errorf("decoding records: %w", err)
	}
	for i, f := range fixtures {
		rec := domain.SourceRecord{
			Kind:      domain.ContentKind(f.Kind),
			ID:        f.ID,
			UpdatedAt: f.UpdatedAt,
			Fields:    f.Fields,
		}
		if err := rec.Ref().Validate(); err != nil {
			return i, fmt.Errorf("record %d: %w", i, err)
		}
		s.Put(rec)
	}
	return len(fixtures), nil
}
