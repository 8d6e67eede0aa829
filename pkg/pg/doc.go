// Package pg wires PostgreSQL connectivity for the billing stores: pool
// construction with retry, a healthcheck adapter, goose migration running,
// and error classification helpers shared by every store built on pgx.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
//	    return err
//	}
//
// Stores translate low-level pgx errors through IsNotFoundError,
// IsDuplicateKeyError, and IsForeignKeyViolationError rather than matching
// SQLSTATE codes at call sites.
package pg
