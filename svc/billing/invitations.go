package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cataloghq/cataloghq/pkg/email"
	"github.com/cataloghq/cataloghq/pkg/entitlement"
	"github.com/cataloghq/cataloghq/pkg/pg"
	"github.com/cataloghq/cataloghq/pkg/plans"
)

// Invitation is a pending offer to join a catalogue's team. The row counts
// toward the team-member limit from the moment it is created, so a flurry of
// invites cannot overshoot the seat cap before anyone accepts.
type Invitation struct {
	ID          uuid.UUID
	CatalogueID uuid.UUID
	AccountID   uuid.UUID // inviting account, owner of the seat allowance
	Email       string
	CreatedAt   time.Time
	AcceptedAt  *time.Time
	RevokedAt   *time.Time
}

// Pending reports whether the invitation still occupies a seat without
// having been accepted.
func (i *Invitation) Pending() bool {
	return i.AcceptedAt == nil && i.RevokedAt == nil
}

// InvitationStore persists team invitations.
//
// Create is the authoritative seat check: the insert and the live seat count
// run in one transaction, and the send callback executes inside the same
// unit of work so an email failure rolls the invitation back. A negative
// seatLimit skips the count check entirely (unlimited or bypassed).
type InvitationStore interface {
	Create(ctx context.Context, inv *Invitation, seatLimit int64, send func(ctx context.Context) error) error

	// CountSeats returns the number of seats consumed for the catalogue:
	// accepted plus still-pending invitations. Revoked rows do not count.
	CountSeats(ctx context.Context, catalogueID uuid.UUID) (int64, error)

	// ListByCatalogue returns the catalogue's invitations, newest first.
	ListByCatalogue(ctx context.Context, catalogueID uuid.UUID) ([]Invitation, error)

	// Accept marks a pending invitation accepted. The seat count is
	// unchanged since pending rows already occupy their seat.
	Accept(ctx context.Context, id uuid.UUID) error

	// Revoke releases the seat held by a pending invitation.
	Revoke(ctx context.Context, id uuid.UUID) error
}

// InviteParams describes a team invitation request.
type InviteParams struct {
	AccountID     uuid.UUID
	CatalogueID   uuid.UUID
	Email         string
	InviterName   string
	CatalogueName string
}

func (p InviteParams) validate() error {
	switch {
	case p.AccountID == uuid.Nil:
		return fmt.Errorf("%w: account ID is required", ErrInvalidParams)
	case p.CatalogueID == uuid.Nil:
		return fmt.Errorf("%w: catalogue ID is required", ErrInvalidParams)
	case p.Email == "":
		return fmt.Errorf("%w: recipient email is required", ErrInvalidParams)
	}
	return nil
}

// InviteTeamMember invites someone to the catalogue's team. The seat limit
// is checked twice: an advisory entitlement check up front for a fast
// refusal, then authoritatively inside the store transaction that also sends
// the invitation email. A send failure aborts the whole operation and no
// invitation row survives.
func (s *Service) InviteTeamMember(ctx context.Context, params InviteParams) (*Invitation, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if s.invitations == nil || s.sender == nil {
		panic("billing: invitation store and email sender are required, use WithInvitations")
	}

	if err := s.entitlements.CanCreate(ctx, params.AccountID, plans.ResourceTeamMembers, params.CatalogueID); err != nil {
		return nil, err
	}

	seatLimit := plans.Unlimited
	if !s.entitlements.LimitBypassed(params.AccountID, plans.ResourceTeamMembers) {
		plan, err := s.EffectivePlan(ctx, params.AccountID)
		if err != nil {
			return nil, err
		}
		seatLimit = plan.Limit(plans.ResourceTeamMembers)
	}

	inv := &Invitation{
		ID:          uuid.New(),
		CatalogueID: params.CatalogueID,
		AccountID:   params.AccountID,
		Email:       params.Email,
		CreatedAt:   s.now(),
	}

	err := s.invitations.Create(ctx, inv, seatLimit, func(ctx context.Context) error {
		return email.SendTeamInvitation(ctx, s.sender, email.Invitation{
			RecipientEmail: params.Email,
			InviterName:    params.InviterName,
			CatalogueName:  params.CatalogueName,
			AcceptURL:      fmt.Sprintf("%s?invitation=%s", s.config.InviteAcceptURL, inv.ID),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "team member invited",
		slog.String("catalogue_id", params.CatalogueID.String()),
		slog.String("invitation_id", inv.ID.String()))
	return inv, nil
}

// RevokeInvitation releases the seat held by a pending invitation.
func (s *Service) RevokeInvitation(ctx context.Context, id uuid.UUID) error {
	if s.invitations == nil {
		panic("billing: invitation store is required, use WithInvitations")
	}
	return s.invitations.Revoke(ctx, id)
}

// ListInvitations returns the catalogue's invitations, newest first.
func (s *Service) ListInvitations(ctx context.Context, catalogueID uuid.UUID) ([]Invitation, error) {
	if s.invitations == nil {
		panic("billing: invitation store is required, use WithInvitations")
	}
	return s.invitations.ListByCatalogue(ctx, catalogueID)
}

const invitationColumns = `id, catalogue_id, account_id, email, created_at, accepted_at, revoked_at`

// PostgresInvitationStore is the production invitation store backed by pgx.
type PostgresInvitationStore struct {
	pool *pgxpool.Pool
}

// NewPostgresInvitationStore returns an InvitationStore using the given pool.
func NewPostgresInvitationStore(pool *pgxpool.Pool) *PostgresInvitationStore {
	if pool == nil {
		panic("billing: pgx pool is required")
	}
	return &PostgresInvitationStore{pool: pool}
}

// Create serializes seat admission per catalogue with a transaction-scoped
// advisory lock, re-counts the occupied seats while holding it, inserts the
// row and runs the send callback before commit. Any failure rolls the whole
// transaction back.
func (st *PostgresInvitationStore) Create(ctx context.Context, inv *Invitation, seatLimit int64, send func(ctx context.Context) error) error {
	err := pgx.BeginTxFunc(ctx, st.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if seatLimit != plans.Unlimited {
			if _, err := tx.Exec(ctx,
				`SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`,
				inv.CatalogueID); err != nil {
				return err
			}

			var seats int64
			if err := tx.QueryRow(ctx, `
				SELECT count(*) FROM team_invitations
				WHERE catalogue_id = $1 AND revoked_at IS NULL`,
				inv.CatalogueID).Scan(&seats); err != nil {
				return err
			}
			if seats >= seatLimit {
				return fmt.Errorf("%w: %d of %d team seats used", entitlement.ErrLimitExceeded, seats, seatLimit)
			}
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO team_invitations (id, catalogue_id, account_id, email, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			inv.ID, inv.CatalogueID, inv.AccountID, inv.Email, inv.CreatedAt); err != nil {
			if pg.IsDuplicateKeyError(err) {
				return ErrDuplicateInvitation
			}
			return err
		}

		return send(ctx)
	})
	if err != nil {
		if errors.Is(err, entitlement.ErrLimitExceeded) || errors.Is(err, ErrDuplicateInvitation) {
			return err
		}
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

func (st *PostgresInvitationStore) CountSeats(ctx context.Context, catalogueID uuid.UUID) (int64, error) {
	var seats int64
	err := st.pool.QueryRow(ctx, `
		SELECT count(*) FROM team_invitations
		WHERE catalogue_id = $1 AND revoked_at IS NULL`,
		catalogueID).Scan(&seats)
	if err != nil {
		return 0, errors.Join(ErrStoreFailure, err)
	}
	return seats, nil
}

func (st *PostgresInvitationStore) ListByCatalogue(ctx context.Context, catalogueID uuid.UUID) ([]Invitation, error) {
	rows, err := st.pool.Query(ctx, `
		SELECT `+invitationColumns+`
		FROM team_invitations
		WHERE catalogue_id = $1
		ORDER BY created_at DESC`,
		catalogueID)
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	defer rows.Close()

	var invitations []Invitation
	for rows.Next() {
		var inv Invitation
		if err := rows.Scan(&inv.ID, &inv.CatalogueID, &inv.AccountID, &inv.Email,
			&inv.CreatedAt, &inv.AcceptedAt, &inv.RevokedAt); err != nil {
			return nil, errors.Join(ErrStoreFailure, err)
		}
		invitations = append(invitations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return invitations, nil
}

func (st *PostgresInvitationStore) Accept(ctx context.Context, id uuid.UUID) error {
	return st.markPending(ctx, id, "accepted_at")
}

func (st *PostgresInvitationStore) Revoke(ctx context.Context, id uuid.UUID) error {
	return st.markPending(ctx, id, "revoked_at")
}

func (st *PostgresInvitationStore) markPending(ctx context.Context, id uuid.UUID, column string) error {
	tag, err := st.pool.Exec(ctx, `
		UPDATE team_invitations SET `+column+` = now()
		WHERE id = $1 AND accepted_at IS NULL AND revoked_at IS NULL`,
		id)
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvitationNotFound
	}
	return nil
}

// MemInvitationStore is an in-memory InvitationStore mirroring the Postgres
// semantics. Used in tests.
type MemInvitationStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*Invitation
}

// NewMemInvitationStore creates an empty in-memory store.
func NewMemInvitationStore() *MemInvitationStore {
	return &MemInvitationStore{rows: make(map[uuid.UUID]*Invitation)}
}

func (st *MemInvitationStore) Create(ctx context.Context, inv *Invitation, seatLimit int64, send func(ctx context.Context) error) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if seatLimit != plans.Unlimited {
		var seats int64
		for _, row := range st.rows {
			if row.CatalogueID == inv.CatalogueID && row.RevokedAt == nil {
				seats++
			}
		}
		if seats >= seatLimit {
			return fmt.Errorf("%w: %d of %d team seats used", entitlement.ErrLimitExceeded, seats, seatLimit)
		}
	}

	for _, row := range st.rows {
		if row.CatalogueID == inv.CatalogueID && row.Email == inv.Email && row.Pending() {
			return ErrDuplicateInvitation
		}
	}

	// Send before recording, mirroring the rollback-on-failure semantics.
	if err := send(ctx); err != nil {
		return err
	}

	clone := *inv
	st.rows[inv.ID] = &clone
	return nil
}

func (st *MemInvitationStore) CountSeats(_ context.Context, catalogueID uuid.UUID) (int64, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	var seats int64
	for _, row := range st.rows {
		if row.CatalogueID == catalogueID && row.RevokedAt == nil {
			seats++
		}
	}
	return seats, nil
}

func (st *MemInvitationStore) ListByCatalogue(_ context.Context, catalogueID uuid.UUID) ([]Invitation, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	var invitations []Invitation
	for _, row := range st.rows {
		if row.CatalogueID == catalogueID {
			invitations = append(invitations, *row)
		}
	}
	return invitations, nil
}

func (st *MemInvitationStore) Accept(_ context.Context, id uuid.UUID) error {
	return st.markPending(id, func(inv *Invitation, now time.Time) { inv.AcceptedAt = &now })
}

func (st *MemInvitationStore) Revoke(_ context.Context, id uuid.UUID) error {
	return st.markPending(id, func(inv *Invitation, now time.Time) { inv.RevokedAt = &now })
}

func (st *MemInvitationStore) markPending(id uuid.UUID, mark func(*Invitation, time.Time)) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	inv, ok := st.rows[id]
	if !ok || !inv.Pending() {
		return ErrInvitationNotFound
	}
	mark(inv, time.Now().UTC())
	return nil
}
