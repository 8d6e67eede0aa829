package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cataloghq/cataloghq/pkg/pg"
	"github.com/cataloghq/cataloghq/pkg/plans"
)

const couponColumns = `id, code, discount_type, value, active, public,
	limit_total, limit_per_customer, used_count, valid_from, valid_until,
	allowed_cycles, created_at`

// PostgresStore is the production coupon store backed by pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore returns a Store using the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("coupon: pgx pool is required")
	}
	return &PostgresStore{pool: pool}
}

func scanCoupon(row pgx.Row) (*Coupon, error) {
	var (
		c      Coupon
		cycles []string
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Type, &c.Value, &c.Active, &c.Public,
		&c.LimitTotal, &c.LimitPerCustomer, &c.UsedCount,
		&c.ValidFrom, &c.ValidUntil, &cycles, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	for _, cycle := range cycles {
		c.AllowedCycles = append(c.AllowedCycles, plans.BillingCycle(cycle))
	}
	return &c, nil
}

func (st *PostgresStore) FindByCode(ctx context.Context, code string) (*Coupon, error) {
	normalized := NormalizeCode(code)
	row := st.pool.QueryRow(ctx, `
		SELECT `+couponColumns+`
		FROM coupons
		WHERE upper(code) = $1`,
		normalized)

	c, err := scanCoupon(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, Reject(normalized, ReasonNotFound)
		}
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return c, nil
}

func (st *PostgresStore) CustomerUsageCount(ctx context.Context, couponID, accountID uuid.UUID) (int64, error) {
	var count int64
	err := st.pool.QueryRow(ctx, `
		SELECT count(*) FROM coupon_usages
		WHERE coupon_id = $1 AND account_id = $2`,
		couponID, accountID).Scan(&count)
	if err != nil {
		return 0, errors.Join(ErrStoreFailure, err)
	}
	return count, nil
}

// Redeem locks the coupon row and re-validates every usage predicate before
// writing. The used_count increment is a conditional update whose affected
// row count is checked, so the global cap holds even if the lock discipline
// is ever weakened.
func (st *PostgresStore) Redeem(ctx context.Context, couponID, accountID, subscriptionID uuid.UUID) (*Usage, error) {
	var usage *Usage

	err := pgx.BeginTxFunc(ctx, st.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT `+couponColumns+`
			FROM coupons
			WHERE id = $1
			FOR UPDATE`,
			couponID)

		c, err := scanCoupon(row)
		if err != nil {
			if pg.IsNotFoundError(err) {
				return Reject("", ReasonNotFound)
			}
			return errors.Join(ErrStoreFailure, err)
		}

		now := time.Now().UTC()
		switch {
		case !c.Active:
			return Reject(c.Code, ReasonInactive)
		case c.ValidUntil != nil && c.ValidUntil.Before(now):
			return Reject(c.Code, ReasonExpired)
		case c.ValidFrom != nil && c.ValidFrom.After(now):
			return Reject(c.Code, ReasonNotYetValid)
		}

		var customerUsed int64
		if err := tx.QueryRow(ctx, `
			SELECT count(*) FROM coupon_usages
			WHERE coupon_id = $1 AND account_id = $2`,
			couponID, accountID).Scan(&customerUsed); err != nil {
			return errors.Join(ErrStoreFailure, err)
		}
		if customerUsed >= c.LimitPerCustomer {
			return Reject(c.Code, ReasonAlreadyUsed)
		}

		tag, err := tx.Exec(ctx, `
			UPDATE coupons
			SET used_count = used_count + 1
			WHERE id = $1
			  AND (limit_total IS NULL OR used_count < limit_total)`,
			couponID)
		if err != nil {
			return errors.Join(ErrStoreFailure, err)
		}
		if tag.RowsAffected() == 0 {
			return Reject(c.Code, ReasonLimitReached)
		}

		u := &Usage{
			ID:             uuid.New(),
			CouponID:       couponID,
			AccountID:      accountID,
			SubscriptionID: subscriptionID,
			CreatedAt:      now,
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO coupon_usages (id, coupon_id, account_id, subscription_id, created_at)
			VALUES ($1,$2,$3,$4,$5)`,
			u.ID, u.CouponID, u.AccountID, u.SubscriptionID, u.CreatedAt,
		); err != nil {
			return errors.Join(ErrStoreFailure, fmt.Errorf("insert coupon usage: %w", err))
		}

		usage = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return usage, nil
}
