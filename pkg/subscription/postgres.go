package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cataloghq/cataloghq/pkg/pg"
)

const subscriptionColumns = `id, account_id, provider_sub_id, status, tier, cycle,
	amount, currency, period_start, period_end, cancel_at_period_end,
	trial_ends_at, canceled_at, created_at, updated_at`

// PostgresStore is the production Store backed by pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore returns a Store using the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("subscription: pgx pool is required")
	}
	return &PostgresStore{pool: pool}
}

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var (
		s             Subscription
		providerSubID *string
	)
	err := row.Scan(
		&s.ID, &s.AccountID, &providerSubID, &s.Status, &s.Tier, &s.Cycle,
		&s.Amount.Amount, &s.Amount.Currency, &s.PeriodStart, &s.PeriodEnd,
		&s.CancelAtPeriodEnd, &s.TrialEndsAt, &s.CanceledAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if providerSubID != nil {
		s.ProviderSubID = *providerSubID
	}
	return &s, nil
}

// nullable maps an empty provider sub ID to NULL so the partial unique index
// only applies to provider-backed rows.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (st *PostgresStore) LatestCounting(ctx context.Context, accountID uuid.UUID) (*Subscription, error) {
	row := st.pool.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE account_id = $1 AND status = ANY($2)
		ORDER BY created_at DESC
		LIMIT 1`,
		accountID, []string{string(StatusActive), string(StatusTrialing)})
	return scanSubscription(row)
}

func (st *PostgresStore) GetByProviderID(ctx context.Context, providerSubID string) (*Subscription, error) {
	if providerSubID == "" {
		return nil, ErrMissingProviderID
	}
	row := st.pool.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE provider_sub_id = $1`,
		providerSubID)
	return scanSubscription(row)
}

func (st *PostgresStore) HasAnyInStatus(ctx context.Context, accountID uuid.UUID, statuses ...Status) (bool, error) {
	if len(statuses) == 0 {
		return false, nil
	}
	raw := make([]string, len(statuses))
	for i, s := range statuses {
		raw[i] = string(s)
	}

	var exists bool
	err := st.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM subscriptions
			WHERE account_id = $1 AND status = ANY($2)
		)`,
		accountID, raw).Scan(&exists)
	return exists, err
}

// CreateLocal inserts the new subscription and cancels older counting rows
// for the account in the same transaction, so the "most recent counting row"
// selection never races with leftover actives.
func (st *PostgresStore) CreateLocal(ctx context.Context, sub *Subscription) error {
	return pgx.BeginTxFunc(ctx, st.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		if _, err := tx.Exec(ctx, `
			UPDATE subscriptions
			SET status = $1, canceled_at = $2, updated_at = $2
			WHERE account_id = $3 AND status = ANY($4)`,
			string(StatusCanceled), now, sub.AccountID,
			[]string{string(StatusActive), string(StatusTrialing)},
		); err != nil {
			return fmt.Errorf("supersede counting subscriptions: %w", err)
		}

		return insertSubscription(ctx, tx, sub)
	})
}

func insertSubscription(ctx context.Context, tx pgx.Tx, sub *Subscription) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO subscriptions (
			id, account_id, provider_sub_id, status, tier, cycle,
			amount, currency, period_start, period_end, cancel_at_period_end,
			trial_ends_at, canceled_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		sub.ID, sub.AccountID, nullable(sub.ProviderSubID), string(sub.Status),
		string(sub.Tier), string(sub.Cycle), sub.Amount.Amount, sub.Amount.Currency,
		sub.PeriodStart, sub.PeriodEnd, sub.CancelAtPeriodEnd,
		sub.TrialEndsAt, sub.CanceledAt, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// Upsert applies a provider-backed subscription state. The provider row is
// locked for the duration of the transaction so two concurrent deliveries of
// the same event serialize instead of double-applying.
func (st *PostgresStore) Upsert(ctx context.Context, sub *Subscription) error {
	if sub.ProviderSubID == "" {
		return ErrMissingProviderID
	}

	return pgx.BeginTxFunc(ctx, st.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT `+subscriptionColumns+`
			FROM subscriptions
			WHERE provider_sub_id = $1
			FOR UPDATE`,
			sub.ProviderSubID)

		current, err := scanSubscription(row)
		if errors.Is(err, ErrNotFound) {
			if sub.ID == uuid.Nil {
				sub.ID = uuid.New()
			}
			now := time.Now().UTC()
			if sub.CreatedAt.IsZero() {
				sub.CreatedAt = now
			}
			sub.UpdatedAt = now
			return insertSubscription(ctx, tx, sub)
		}
		if err != nil {
			return err
		}

		if !current.Status.CanTransitionTo(sub.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, sub.Status)
		}

		return updateStatusTx(ctx, tx, current, sub.Status, func() (time.Time, time.Time, bool) {
			periodStart, periodEnd := current.PeriodStart, current.PeriodEnd
			if sub.PeriodStart != (time.Time{}) {
				periodStart = sub.PeriodStart
			}
			if sub.PeriodEnd != (time.Time{}) {
				periodEnd = sub.PeriodEnd
			}
			return periodStart, periodEnd, sub.CancelAtPeriodEnd
		})
	})
}

// updateStatusTx writes the status-only mutation: status, period bounds,
// cancel flag and the cancellation timestamp. Tier, amount and currency are
// deliberately left untouched.
func updateStatusTx(ctx context.Context, tx pgx.Tx, current *Subscription, status Status, bounds func() (time.Time, time.Time, bool)) error {
	now := time.Now().UTC()
	periodStart, periodEnd, cancelFlag := bounds()

	canceledAt := current.CanceledAt
	if status == StatusCanceled && canceledAt == nil {
		canceledAt = &now
	}

	_, err := tx.Exec(ctx, `
		UPDATE subscriptions
		SET status = $1, period_start = $2, period_end = $3,
			cancel_at_period_end = $4, canceled_at = $5, updated_at = $6
		WHERE id = $7`,
		string(status), periodStart, periodEnd, cancelFlag, canceledAt, now, current.ID)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}

func (st *PostgresStore) SetStatusByProviderID(ctx context.Context, providerSubID string, status Status) error {
	if providerSubID == "" {
		return ErrMissingProviderID
	}

	return pgx.BeginTxFunc(ctx, st.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT `+subscriptionColumns+`
			FROM subscriptions
			WHERE provider_sub_id = $1
			FOR UPDATE`,
			providerSubID)

		current, err := scanSubscription(row)
		if err != nil {
			return err
		}

		if !current.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
		}

		return updateStatusTx(ctx, tx, current, status, func() (time.Time, time.Time, bool) {
			return current.PeriodStart, current.PeriodEnd, current.CancelAtPeriodEnd
		})
	})
}
