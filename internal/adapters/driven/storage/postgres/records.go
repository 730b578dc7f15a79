package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/campus/internal/core/domain"
	"github.com/custodia-labs/campus/internal/core/ports/driven"
)

// Ensure RecordSource implements the interface.
var _ driven.RecordSource = (*RecordSource)(nil)

// updatedAtField is the column read into SourceRecord.UpdatedAt when present.
const updatedAtField = "updated_at"

// RecordSource reads CMS records from the content tables named in the kind
// registry. Rows are decoded through row_to_json, so any column layout works
// and nested JSON columns keep their structure for dotted field paths.
type RecordSource struct {
	db       *sql.DB
	registry *domain.KindRegistry
}

// NewRecordSource creates a record source. The source owns db.
func NewRecordSource(db *sql.DB, registry *domain.KindRegistry) *RecordSource {
	return &RecordSource{db: db, registry: registry}
}

// Close closes the database connection.
func (s *RecordSource) Close() error {
	return s.db.Close()
}

// Get returns one record. Returns domain.ErrNotFound for a missing row.
func (s *RecordSource) Get(ctx context.Context, ref domain.SourceRef) (*domain.SourceRecord, error) {
	table, err := s.table(ref.Kind)
	if err != nil {
		return nil, err
	}

	var raw []byte
	err = s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT row_to_json(t)::text FROM %s t WHERE t.id::text = $1", table),
		ref.ID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", ref, err)
	}

	fields := make(map[string]any)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", ref, err)
	}
	return &domain.SourceRecord{
		Kind:      ref.Kind,
		ID:        ref.ID,
		UpdatedAt: updatedAt(fields),
		Fields:    fields,
	}, nil
}

// ListIDs returns the IDs of every record of the kind, ordered.
func (s *RecordSource) ListIDs(ctx context.Context, kind domain.ContentKind) ([]string, error) {
	table, err := s.table(kind)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT id::text FROM %s ORDER BY id::text", table))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", kind, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning %s id: %w", kind, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// table returns the quoted table name for the kind.
func (s *RecordSource) table(kind domain.ContentKind) (string, error) {
	spec, ok := s.registry.Lookup(kind)
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedSourceKind, kind)
	}
	if spec.Table == "" {
		return "", fmt.Errorf("%w: kind %s has no table", domain.ErrUnsupportedSourceKind, kind)
	}
	return pq.QuoteIdentifier(spec.Table), nil
}

// updatedAt reads the row's modification time; row_to_json renders
// timestamps in ISO 8601.
func updatedAt(fields map[string]any) time.Time {
	v, ok := fields[updatedAtField].(string)
	if !ok {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
