// Package sqlite provides a SQLite-backed vector index for single-node
// deployments.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Entries live in one table keyed by (source_type, source_id, chunk_index);
// embeddings are stored as little-endian float32 blobs.
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode, and each source replacement runs in one transaction.
package sqlite
