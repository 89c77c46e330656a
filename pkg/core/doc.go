// Package core implements a hybrid vector + keyword retrieval engine on top
// of PostgreSQL with the pgvector extension.
//
// Embedding rows live in a single table partitioned logically by namespace.
// Retrieval combines dense vector similarity (cosine distance scored inside
// Postgres) with sparse lexical matching (ts_rank over the chunk text) and
// merges both rankings with Reciprocal Rank Fusion. Probe terms for the
// lexical side come from the companion terms package.
//
// The store never computes embeddings itself; callers supply an Embedder for
// query text and pre-computed vectors for inserts.
package core
