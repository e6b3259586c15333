// Package pg bootstraps the PostgreSQL layer: a pgx/v5 connection pool with
// startup retries, goose schema migrations, a health check, transaction
// helpers, and error classification shared by the store implementations.
package pg
