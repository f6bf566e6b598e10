// Package history keeps finished lecture notes per user so they can be
// listed, reopened, deleted and searched later.
//
// Two backends implement Store: an in-memory one for single-process use and
// tests, and a PostgreSQL one (pgx pool) that also stores slide caption
// embeddings in a pgvector column for similarity search.
package history
