// Package domain defines the core entities of the campus retrieval core.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - SourceRecord: A content record read from the school CMS store
//   - Mutation: A create/update/delete notification for one record
//   - Chunk: A contiguous slice of a record's normalised text
//   - IndexEntry: A chunk with its embedding, owned by the vector index
//   - RetrievalResult: A ranked chunk returned for a query
//   - KindRegistry: The per content kind lookup table
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
