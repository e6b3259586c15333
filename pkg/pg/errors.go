package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrParseConfig        = errors.New("failed to parse postgres config")
	ErrOpenConnection     = errors.New("failed to open postgres connection")
	ErrHealthcheckFailed  = errors.New("postgres healthcheck failed")
	ErrApplyMigrations    = errors.New("failed to apply migrations")
	ErrNoMigrationsPath   = errors.New("migrations path not provided")
	ErrMigrationsNotFound = errors.New("migrations directory not found")
)

// IsNotFound reports whether err is pgx's empty-result error.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsDuplicateKey reports a unique constraint violation (SQLSTATE 23505).
func IsDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsForeignKeyViolation reports a referential integrity violation
// (SQLSTATE 23503).
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
