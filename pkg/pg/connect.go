package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx pool and verifies it with a ping, retrying with a
// linearly growing backoff so simultaneous service restarts don't hammer the
// database.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseConfig, err)
	}
	poolConfig.MaxConns = cfg.MaxOpenConns
	poolConfig.MinConns = cfg.MinIdleConns
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime

	for attempt := range cfg.RetryAttempts {
		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err == nil {
			// A ping catches auth and permission problems that pool
			// construction alone does not.
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		time.Sleep(time.Duration(attempt+1) * cfg.RetryInterval)
	}

	return nil, ErrFailedToConnect
}

// Healthcheck adapts the pool to the func(ctx) error shape health endpoints
// expect.
func Healthcheck(pool *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
