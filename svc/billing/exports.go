package billing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cataloghq/cataloghq/pkg/entitlement"
	"github.com/cataloghq/cataloghq/pkg/plans"
)

// ExportRun records one export of a catalogue. Runs are what the monthly
// export quota counts; the produced document lives in the artifact store.
type ExportRun struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	CatalogueID uuid.UUID
	Key         string
	URL         string
	Size        int64
	ContentType string
	CreatedAt   time.Time
}

// ExportStore persists export runs.
type ExportStore interface {
	// Record inserts the run, enforcing the quota authoritatively: the
	// insert and a recount of the account's runs in [from, to) happen in
	// one unit of work, and the insert is refused with ErrLimitExceeded
	// when the window already holds quota runs. A quota of
	// plans.Unlimited skips the count.
	Record(ctx context.Context, run *ExportRun, quota int64, from, to time.Time) error

	// CountBetween counts the account's runs created in [from, to).
	CountBetween(ctx context.Context, accountID uuid.UUID, from, to time.Time) (int64, error)

	// ListByAccount returns the account's runs, newest first, up to limit.
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]ExportRun, error)
}

// ExportCounter adapts an ExportStore to the entitlement counter contract,
// counting runs in the current UTC calendar month.
func ExportCounter(store ExportStore, now func() time.Time) entitlement.CounterFunc {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, accountID, _ uuid.UUID) (int64, error) {
		from, to := entitlement.MonthWindow(now())
		return store.CountBetween(ctx, accountID, from, to)
	}
}

// ExportParams describes one export run request.
type ExportParams struct {
	AccountID   uuid.UUID
	CatalogueID uuid.UUID
	ContentType string
	Body        io.Reader
}

func (p ExportParams) validate() error {
	if p.AccountID == uuid.Nil || p.CatalogueID == uuid.Nil ||
		p.ContentType == "" || p.Body == nil {
		return ErrInvalidParams
	}
	return nil
}

// RunExport checks the monthly export quota, stores the rendered document
// and records the run. The quota is checked twice: an advisory entitlement
// check up front for a fast refusal, then authoritatively inside the store
// that recounts the window while holding the account's lock. A failure to
// record removes the stored document so quota accounting and storage stay
// consistent.
func (s *Service) RunExport(ctx context.Context, params ExportParams) (*ExportRun, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if s.exports == nil || s.artifacts == nil {
		panic("billing: export store and artifact store are required, use WithExports")
	}

	if err := s.entitlements.CanCreate(ctx, params.AccountID, plans.ResourceExports, uuid.Nil); err != nil {
		return nil, err
	}

	quota := plans.Unlimited
	if !s.entitlements.LimitBypassed(params.AccountID, plans.ResourceExports) {
		plan, err := s.EffectivePlan(ctx, params.AccountID)
		if err != nil {
			return nil, err
		}
		quota = plan.Limit(plans.ResourceExports)
	}

	id := uuid.New()
	art, err := s.artifacts.Put(ctx, params.AccountID, id, params.ContentType, params.Body)
	if err != nil {
		return nil, err
	}

	run := &ExportRun{
		ID:          id,
		AccountID:   params.AccountID,
		CatalogueID: params.CatalogueID,
		Key:         art.Key,
		URL:         art.URL,
		Size:        art.Size,
		ContentType: art.ContentType,
		CreatedAt:   s.now(),
	}
	from, to := entitlement.MonthWindow(run.CreatedAt)
	if err := s.exports.Record(ctx, run, quota, from, to); err != nil {
		if delErr := s.artifacts.Delete(ctx, art.Key); delErr != nil {
			s.log.ErrorContext(ctx, "failed to remove orphaned export artifact",
				"key", art.Key, "error", delErr)
		}
		return nil, err
	}

	s.log.InfoContext(ctx, "export completed",
		"account_id", params.AccountID,
		"catalogue_id", params.CatalogueID,
		"export_id", run.ID,
		"size", run.Size)
	return run, nil
}

// ListExports returns the account's recent export runs, newest first.
func (s *Service) ListExports(ctx context.Context, accountID uuid.UUID, limit int) ([]ExportRun, error) {
	if s.exports == nil {
		panic("billing: export store is required, use WithExports")
	}
	if limit <= 0 {
		limit = 50
	}
	return s.exports.ListByAccount(ctx, accountID, limit)
}

const exportColumns = `id, account_id, catalogue_id, key, url, size, content_type, created_at`

// PostgresExportStore is the production export-run store backed by pgx.
type PostgresExportStore struct {
	pool *pgxpool.Pool
}

// NewPostgresExportStore returns an ExportStore using the given pool.
func NewPostgresExportStore(pool *pgxpool.Pool) *PostgresExportStore {
	if pool == nil {
		panic("billing: pgx pool is required")
	}
	return &PostgresExportStore{pool: pool}
}

// Record serializes quota admission per account with a transaction-scoped
// advisory lock, recounts the window's runs while holding it and inserts
// the row. A full window rolls the whole transaction back.
func (st *PostgresExportStore) Record(ctx context.Context, run *ExportRun, quota int64, from, to time.Time) error {
	err := pgx.BeginTxFunc(ctx, st.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if quota != plans.Unlimited {
			if _, err := tx.Exec(ctx,
				`SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`,
				run.AccountID); err != nil {
				return err
			}

			var n int64
			if err := tx.QueryRow(ctx, `
				SELECT count(*) FROM export_runs
				WHERE account_id = $1 AND created_at >= $2 AND created_at < $3`,
				run.AccountID, from, to).Scan(&n); err != nil {
				return err
			}
			if n >= quota {
				return fmt.Errorf("%w: %d of %d exports used this month", entitlement.ErrLimitExceeded, n, quota)
			}
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO export_runs (`+exportColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			run.ID, run.AccountID, run.CatalogueID, run.Key, run.URL,
			run.Size, run.ContentType, run.CreatedAt)
		return err
	})
	if err != nil {
		if errors.Is(err, entitlement.ErrLimitExceeded) {
			return err
		}
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

func (st *PostgresExportStore) CountBetween(ctx context.Context, accountID uuid.UUID, from, to time.Time) (int64, error) {
	var n int64
	err := st.pool.QueryRow(ctx, `
		SELECT count(*) FROM export_runs
		WHERE account_id = $1 AND created_at >= $2 AND created_at < $3`,
		accountID, from, to).Scan(&n)
	if err != nil {
		return 0, errors.Join(ErrStoreFailure, err)
	}
	return n, nil
}

func (st *PostgresExportStore) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]ExportRun, error) {
	rows, err := st.pool.Query(ctx, `
		SELECT `+exportColumns+`
		FROM export_runs
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		accountID, limit)
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	defer rows.Close()

	var runs []ExportRun
	for rows.Next() {
		var run ExportRun
		if err := rows.Scan(&run.ID, &run.AccountID, &run.CatalogueID, &run.Key,
			&run.URL, &run.Size, &run.ContentType, &run.CreatedAt); err != nil {
			return nil, errors.Join(ErrStoreFailure, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return runs, nil
}

// MemExportStore is an in-memory ExportStore for tests and local work.
type MemExportStore struct {
	mu   sync.Mutex
	runs []ExportRun
}

// NewMemExportStore creates an empty in-memory store.
func NewMemExportStore() *MemExportStore {
	return &MemExportStore{}
}

// Record mirrors the Postgres semantics: the recount and the append happen
// under one lock so concurrent runs cannot overshoot the quota.
func (st *MemExportStore) Record(_ context.Context, run *ExportRun, quota int64, from, to time.Time) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if quota != plans.Unlimited {
		var n int64
		for _, r := range st.runs {
			if r.AccountID == run.AccountID && !r.CreatedAt.Before(from) && r.CreatedAt.Before(to) {
				n++
			}
		}
		if n >= quota {
			return fmt.Errorf("%w: %d of %d exports used this month", entitlement.ErrLimitExceeded, n, quota)
		}
	}

	st.runs = append(st.runs, *run)
	return nil
}

func (st *MemExportStore) CountBetween(_ context.Context, accountID uuid.UUID, from, to time.Time) (int64, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	var n int64
	for _, run := range st.runs {
		if run.AccountID == accountID && !run.CreatedAt.Before(from) && run.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func (st *MemExportStore) ListByAccount(_ context.Context, accountID uuid.UUID, limit int) ([]ExportRun, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	var runs []ExportRun
	for _, run := range st.runs {
		if run.AccountID == accountID {
			runs = append(runs, run)
		}
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
