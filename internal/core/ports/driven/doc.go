// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - RecordSource: Reads content records from the relational store
//   - Normaliser: Flattens a record into retrievable text
//   - Chunker: Splits normalised text into overlapping chunks
//   - EmbeddingService: Generates vector embeddings (external HTTP service)
//   - VectorIndex: Stores and scores chunk embeddings
//   - CacheStore: Holds derived website caches
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - GenerationService: Without it, chat answers with the fallback message.
//   - RankedSearcher: Implemented by indexes that can preselect candidates in-engine.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, normaliser, or postprocessor package
package driven
