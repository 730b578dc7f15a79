package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/campus/internal/core/domain"
	"github.com/custodia-labs/campus/internal/core/ports/driven"
	"github.com/custodia-labs/campus/internal/vectormath"
)

// Ensure Index implements the interfaces.
var (
	_ driven.VectorIndex    = (*Index)(nil)
	_ driven.RankedSearcher = (*Index)(nil)
)

const entryColumns = `source_type, source_id, chunk_index, content, char_start, char_end, embedding, indexed_at`

// scoreColumn is the cosine similarity to $1. pgvector yields NaN for
// zero vectors; those score 0.
const scoreColumn = `COALESCE(NULLIF(1 - (embedding <=> $1), 'NaN'::float8), 0) AS score`

// identityOrder sorts identifiers by bytes, whatever the database collation.
const identityOrder = `source_type COLLATE "C", source_id COLLATE "C", chunk_index`

// searchSlack widens the preselection. pgvector accumulates in float32,
// so its scores can differ from the exact ones by well under this.
const searchSlack = 1e-3

// Index is a pgvector-backed vector index.
type Index struct {
	db         *sql.DB
	dimensions int
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres dsn is required", domain.ErrInvalidInput)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return db, nil
}

// NewIndex wraps an open database. The schema must already be migrated.
// The index owns db and closes it on Close.
func NewIndex(db *sql.DB, dimensions int) *Index {
	return &Index{db: db, dimensions: dimensions}
}

// Close closes the database connection.
func (x *Index) Close() error {
	return x.db.Close()
}

// UpsertSource replaces every entry of the identity in one transaction.
func (x *Index) UpsertSource(ctx context.Context, ref domain.SourceRef, entries []domain.IndexEntry) error {
	if err := domain.ValidateEntries(ref, entries, x.dimensions); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndexWriteFailed, err)
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", domain.ErrIndexWriteFailed, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM index_entries WHERE source_type = $1 AND source_id = $2",
		string(ref.Kind), ref.ID); err != nil {
		return fmt.Errorf("%w: clearing entries: %w", domain.ErrIndexWriteFailed, err)
	}

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO index_entries (`+entryColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			string(e.Kind), e.SourceID, e.Index, e.Text, e.CharStart, e.CharEnd,
			pgvector.NewVector(e.Embedding), e.IndexedAt.UTC()); err != nil {
			return fmt.Errorf("%w: saving entry %d: %w", domain.ErrIndexWriteFailed, e.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %w", domain.ErrIndexWriteFailed, err)
	}
	return nil
}

// DeleteSource removes every entry of the identity.
func (x *Index) DeleteSource(ctx context.Context, ref domain.SourceRef) error {
	if _, err := x.db.ExecContext(ctx,
		"DELETE FROM index_entries WHERE source_type = $1 AND source_id = $2",
		string(ref.Kind), ref.ID); err != nil {
		return fmt.Errorf("%w: deleting entries: %w", domain.ErrIndexWriteFailed, err)
	}
	return nil
}

// ScoreAll returns the cosine similarity of query against every entry,
// computed in double precision.
func (x *Index) ScoreAll(ctx context.Context, query []float32) ([]domain.ScoredEntry, error) {
	scored, err := x.query(ctx, false, `
		SELECT `+entryColumns+`
		FROM index_entries
		ORDER BY `+identityOrder)
	if err != nil {
		return nil, err
	}
	for i := range scored {
		scored[i].Score = vectormath.Cosine(query, scored[i].Entry.Embedding)
	}
	return scored, nil
}

// Search preselects the entries that can rank among the limit best at or
// above minScore. The scores it returns come from pgvector and are only
// approximately the cosine similarity.
func (x *Index) Search(ctx context.Context, query []float32, limit int, minScore float64) ([]domain.ScoredEntry, error) {
	if limit < 1 {
		return nil, nil
	}
	return x.query(ctx, true, `
		WITH scored AS (
			SELECT `+entryColumns+`, `+scoreColumn+`
			FROM index_entries
		), cutoff AS (
			SELECT score FROM scored ORDER BY score DESC OFFSET $3::int LIMIT 1
		)
		SELECT * FROM scored
		WHERE score >= $2::float8 - $4::float8
		  AND score >= COALESCE((SELECT score FROM cutoff), -1) - $4::float8
		ORDER BY score DESC, `+identityOrder,
		pgvector.NewVector(query), minScore, limit-1, searchSlack)
}

// query scans entries, plus a trailing score column when withScore is set.
func (x *Index) query(ctx context.Context, withScore bool, q string, args ...any) ([]domain.ScoredEntry, error) {
	rows, err := x.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var scored []domain.ScoredEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		var s domain.ScoredEntry
		var extra []any
		if withScore {
			extra = append(extra, &s.Score)
		}
		if err := scanEntry(rows, &s.Entry, extra...); err != nil {
			return nil, err
		}
		scored = append(scored, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return scored, nil
}

// Entries returns the identity's entries ordered by chunk index.
func (x *Index) Entries(ctx context.Context, ref domain.SourceRef) ([]domain.IndexEntry, error) {
	rows, err := x.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM index_entries
		WHERE source_type = $1 AND source_id = $2
		ORDER BY chunk_index
	`, string(ref.Kind), ref.ID)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.IndexEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		var e domain.IndexEntry
		if err := scanEntry(rows, &e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Sources lists the indexed identities of a kind, ordered by ID.
func (x *Index) Sources(ctx context.Context, kind domain.ContentKind) ([]domain.SourceRef, error) {
	rows, err := x.db.QueryContext(ctx,
		`SELECT DISTINCT source_id COLLATE "C" AS source_id FROM index_entries WHERE source_type = $1 ORDER BY 1`,
		string(kind))
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	var refs []domain.SourceRef
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		refs = append(refs, domain.SourceRef{Kind: kind, ID: id})
	}
	return refs, rows.Err()
}

// Count returns the total number of entries.
func (x *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := x.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM index_entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return n, nil
}

func scanEntry(rows *sql.Rows, e *domain.IndexEntry, extra ...any) error {
	var kind string
	var vec pgvector.Vector
	var indexedAt time.Time
	dest := append([]any{&kind, &e.SourceID, &e.Index, &e.Text,
		&e.CharStart, &e.CharEnd, &vec, &indexedAt}, extra...)
	if err := rows.Scan(dest...); err != nil {
		return fmt.Errorf("scanning entry: %w", err)
	}
	e.Kind = domain.ContentKind(kind)
	e.Embedding = vec.Slice()
	e.IndexedAt = indexedAt.UTC()
	return nil
}
