package pg

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// logger is the slog-compatible subset migration logging needs.
type logger interface {
	InfoContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// Migrate applies goose migrations from cfg.MigrationsPath. Goose speaks
// database/sql, so the pgx pool is bridged through stdlib; the underlying
// connections are shared, not duplicated.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg Config, log logger) error {
	if cfg.MigrationsPath == "" {
		return errors.Join(ErrFailedToApplyMigrations, ErrMigrationsPathMissing)
	}
	if _, err := os.Stat(cfg.MigrationsPath); err != nil {
		if os.IsNotExist(err) {
			return errors.Join(ErrMigrationsDirNotFound, err)
		}
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer func() {
		if err := db.Close(); err != nil {
			log.ErrorContext(ctx, "failed to close migration db handle", "error", err)
		}
	}()

	goose.SetLogger(gooseLogger{log: log})
	goose.SetTableName(cfg.MigrationsTable)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	if err := goose.UpContext(ctx, db, cfg.MigrationsPath); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	return nil
}

// gooseLogger routes goose's Printf-style output through the application
// logger instead of stdout.
type gooseLogger struct {
	log logger
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.log.ErrorContext(context.Background(), fmt.Sprintf(format, v...))
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.log.InfoContext(context.Background(), fmt.Sprintf(format, v...))
}
