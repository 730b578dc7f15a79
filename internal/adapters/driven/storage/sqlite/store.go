package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/campus/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/campus/internal/core/domain"
	"github.com/custodia-labs/campus/internal/core/ports/driven"
	"github.com/custodia-labs/campus/internal/vectormath"
)

// Ensure Store implements the interface.
var _ driven.VectorIndex = (*Store)(nil)

// Store is a SQLite-based vector index.
type Store struct {
	db         *sql.DB
	path       string
	dimensions int
}

// NewStore opens or creates the index database at path and migrates it.
// dimensions is the embedding size every write is checked against.
func NewStore(path string, dimensions int) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: index path is required", domain.ErrInvalidInput)
	}

	// Ensure directory exists
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:         db,
		path:       path,
		dimensions: dimensions,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys fs.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// UpsertSource replaces every entry of the identity in one transaction.
func (s *Store) UpsertSource(ctx context.Context, ref domain.SourceRef, entries []domain.IndexEntry) error {
	if err := domain.ValidateEntries(ref, entries, s.dimensions); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndexWriteFailed, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", domain.ErrIndexWriteFailed, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM index_entries WHERE source_type = ? AND source_id = ?",
		string(ref.Kind), ref.ID); err != nil {
		return fmt.Errorf("%w: clearing entries: %w", domain.ErrIndexWriteFailed, err)
	}

	if len(entries) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO index_entries
				(source_type, source_id, chunk_index, content, char_start, char_end, embedding, indexed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("%w: preparing statement: %w", domain.ErrIndexWriteFailed, err)
		}
		defer stmt.Close()

		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx, string(e.Kind), e.SourceID, e.Index, e.Text,
				e.CharStart, e.CharEnd, float32SliceToBytes(e.Embedding), e.IndexedAt.UnixMicro()); err != nil {
				return fmt.Errorf("%w: saving entry %d: %w", domain.ErrIndexWriteFailed, e.Index, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing transaction: %w", domain.ErrIndexWriteFailed, err)
	}
	return nil
}

// DeleteSource removes every entry of the identity.
func (s *Store) DeleteSource(ctx context.Context, ref domain.SourceRef) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM index_entries WHERE source_type = ? AND source_id = ?",
		string(ref.Kind), ref.ID); err != nil {
		return fmt.Errorf("%w: deleting entries: %w", domain.ErrIndexWriteFailed, err)
	}
	return nil
}

// ScoreAll returns the cosine similarity of query against every entry.
func (s *Store) ScoreAll(ctx context.Context, query []float32) ([]domain.ScoredEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_type, source_id, chunk_index, content, char_start, char_end, embedding, indexed_at
		FROM index_entries
		ORDER BY source_type, source_id, chunk_index
	`)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var scored []domain.ScoredEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		scored = append(scored, domain.ScoredEntry{Entry: e, Score: vectormath.Cosine(query, e.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return scored, nil
}

// Entries returns the identity's entries ordered by chunk index.
func (s *Store) Entries(ctx context.Context, ref domain.SourceRef) ([]domain.IndexEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_type, source_id, chunk_index, content, char_start, char_end, embedding, indexed_at
		FROM index_entries
		WHERE source_type = ? AND source_id = ?
		ORDER BY chunk_index
	`, string(ref.Kind), ref.ID)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.IndexEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Sources lists the indexed identities of a kind, ordered by ID.
func (s *Store) Sources(ctx context.Context, kind domain.ContentKind) ([]domain.SourceRef, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT source_id FROM index_entries WHERE source_type = ? ORDER BY source_id",
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
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM index_entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (domain.IndexEntry, error) {
	var e domain.IndexEntry
	var kind string
	var blob []byte
	var indexedAt int64
	if err := row.Scan(&kind, &e.SourceID, &e.Index, &e.Text,
		&e.CharStart, &e.CharEnd, &blob, &indexedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, domain.ErrNotFound
		}
		return e, fmt.Errorf("scanning entry: %w", err)
	}
	e.Kind = domain.ContentKind(kind)
	e.Embedding = bytesToFloat32Slice(blob)
	e.IndexedAt = time.UnixMicro(indexedAt).UTC()
	return e, nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
