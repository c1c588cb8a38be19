// Package pg provides PostgreSQL connection management built on pgx:
// pool construction with startup retry, goose-based schema migrations, a
// health check closure, and error classification helpers (not-found,
// duplicate key, foreign key violation) used by repository implementations.
package pg
