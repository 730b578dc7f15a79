// Package postgres provides the PostgreSQL adapters: a pgvector-backed
// vector index and a record source reading the CMS content tables.
//
// # Schema
//
// The index schema is versioned with golang-migrate; migrations are embedded
// and applied with Migrate, or by "campus migrate up". The embedding column is
// an unconstrained pgvector vector so the dimensionality stays a runtime
// setting; every write is checked against it before reaching the database.
//
// # Ranking
//
// Index implements driven.RankedSearcher. PostgreSQL preselects candidates
// with the cosine distance operator (<=>), keeping a small score margin
// around the threshold and the limit-th score because pgvector sums in
// single precision. The exact scores and the final order are computed by
// the caller. Identifiers sort with COLLATE "C" so ties order by bytes, as
// everywhere else in campus.
package postgres
