package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrFailedToConnect         = errors.New("failed to open postgres connection")
	ErrFailedToParseConfig     = errors.New("failed to parse postgres config")
	ErrHealthcheckFailed       = errors.New("postgres healthcheck failed")
	ErrFailedToApplyMigrations = errors.New("failed to apply migrations")
	ErrMigrationsDirNotFound   = errors.New("migrations directory not found")
	ErrMigrationsPathMissing   = errors.New("migrations path not provided")
)

// IsNotFoundError reports whether err is pgx's no-rows sentinel, so stores
// can translate it into their own not-found errors.
func IsNotFoundError(err error) bool {
	return err != nil && errors.Is(err, pgx.ErrNoRows)
}

// IsDuplicateKeyError reports a unique constraint violation (SQLSTATE 23505).
func IsDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsForeignKeyViolationError reports a referential integrity violation
// (SQLSTATE 23503).
func IsForeignKeyViolationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
