package billing_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cataloghq/cataloghq/pkg/coupon"
	"github.com/cataloghq/cataloghq/pkg/email"
	"github.com/cataloghq/cataloghq/pkg/entitlement"
	"github.com/cataloghq/cataloghq/pkg/plans"
	"github.com/cataloghq/cataloghq/pkg/subscription"
	"github.com/cataloghq/cataloghq/svc/billing"
)

type captureSender struct {
	sent []email.SendParams
	err  error
}

func (s *captureSender) SendEmail(_ context.Context, params email.SendParams) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, params)
	return nil
}

type inviteEnv struct {
	svc       *billing.Service
	subs      *subscription.MemStore
	invites   *billing.MemInvitationStore
	sender    *captureSender
	accountID uuid.UUID
}

// newInviteEnv wires the team-member counter to the invitation store itself,
// so seats consumed by pending invitations feed straight back into the
// entitlement check.
func newInviteEnv(t *testing.T, tier plans.Tier, policy entitlement.OverridePolicy) *inviteEnv {
	t.Helper()

	subs := subscription.NewMemStore()
	invites := billing.NewMemInvitationStore()
	sender := &captureSender{}
	accountID := uuid.New()

	registry := entitlement.NewRegistry()
	registry.Register(plans.ResourceTeamMembers,
		func(ctx context.Context, _ uuid.UUID, scope uuid.UUID) (int64, error) {
			return invites.CountSeats(ctx, scope)
		})

	var entOpts []entitlement.Option
	if policy != nil {
		entOpts = append(entOpts, entitlement.WithOverridePolicy(policy))
	}

	catalog := plans.Default()
	entitlements := entitlement.NewService(catalog, registry, billing.TierResolver(subs), entOpts...)
	svc := billing.NewService(testConfig(), catalog, subs, coupon.NewLedger(coupon.NewMemStore()),
		&fakeProvider{}, entitlements,
		billing.WithInvitations(invites, sender),
		billing.WithLogger(slog.New(slog.DiscardHandler)))

	if tier != plans.TierFree {
		require.NoError(t, subs.Upsert(context.Background(), &subscription.Subscription{
			AccountID:     accountID,
			ProviderSubID: "sub_invite_" + uuid.NewString()[:8],
			Status:        subscription.StatusActive,
			Tier:          tier,
			Cycle:         plans.CycleMonthly,
		}))
	}

	return &inviteEnv{svc: svc, subs: subs, invites: invites, sender: sender, accountID: accountID}
}

func inviteParams(env *inviteEnv, catalogueID uuid.UUID, recipient string) billing.InviteParams {
	return billing.InviteParams{
		AccountID:     env.accountID,
		CatalogueID:   catalogueID,
		Email:         recipient,
		InviterName:   "Dana",
		CatalogueName: "Spring Lookbook",
	}
}

func TestInviteTeamMember(t *testing.T) {
	t.Parallel()

	env := newInviteEnv(t, plans.TierStandard, nil)
	catalogueID := uuid.New()

	inv, err := env.svc.InviteTeamMember(context.Background(), inviteParams(env, catalogueID, "new@example.com"))
	require.NoError(t, err)
	assert.True(t, inv.Pending())

	seats, err := env.invites.CountSeats(context.Background(), catalogueID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seats)

	require.Len(t, env.sender.sent, 1)
	sent := env.sender.sent[0]
	assert.Equal(t, "new@example.com", sent.SendTo)
	assert.Contains(t, sent.BodyHTML, "Spring Lookbook")
	assert.Contains(t, sent.BodyHTML, inv.ID.String())
}

func TestInviteTeamMemberSeatLimit(t *testing.T) {
	t.Parallel()

	// The free plan has a single team seat.
	env := newInviteEnv(t, plans.TierFree, nil)
	catalogueID := uuid.New()

	_, err := env.svc.InviteTeamMember(context.Background(), inviteParams(env, catalogueID, "first@example.com"))
	require.NoError(t, err)

	_, err = env.svc.InviteTeamMember(context.Background(), inviteParams(env, catalogueID, "second@example.com"))
	require.ErrorIs(t, err, entitlement.ErrLimitExceeded)

	// The refused invite sent nothing.
	assert.Len(t, env.sender.sent, 1)
}

func TestInviteTeamMemberEmailFailureRollsBack(t *testing.T) {
	t.Parallel()

	env := newInviteEnv(t, plans.TierStandard, nil)
	env.sender.err = errors.Join(email.ErrFailedToSend, errors.New("postmark 500"))
	catalogueID := uuid.New()

	_, err := env.svc.InviteTeamMember(context.Background(), inviteParams(env, catalogueID, "new@example.com"))
	require.ErrorIs(t, err, email.ErrFailedToSend)

	// No invitation row survives a failed send.
	seats, err := env.invites.CountSeats(context.Background(), catalogueID)
	require.NoError(t, err)
	assert.Zero(t, seats)

	invitations, err := env.svc.ListInvitations(context.Background(), catalogueID)
	require.NoError(t, err)
	assert.Empty(t, invitations)
}

func TestInviteTeamMemberDuplicatePending(t *testing.T) {
	t.Parallel()

	env := newInviteEnv(t, plans.TierStandard, nil)
	catalogueID := uuid.New()

	_, err := env.svc.InviteTeamMember(context.Background(), inviteParams(env, catalogueID, "dup@example.com"))
	require.NoError(t, err)

	_, err = env.svc.InviteTeamMember(context.Background(), inviteParams(env, catalogueID, "dup@example.com"))
	require.ErrorIs(t, err, billing.ErrDuplicateInvitation)
}

func TestInviteTeamMemberOverrideBypass(t *testing.T) {
	t.Parallel()

	admin := uuid.New()
	policy := entitlement.NewStaticPolicy(admin).ForResources(plans.ResourceTeamMembers)
	env := newInviteEnv(t, plans.TierFree, policy)
	env.accountID = admin
	catalogueID := uuid.New()

	// Three invites on a one-seat plan, all admitted through the bypass.
	for _, recipient := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		_, err := env.svc.InviteTeamMember(context.Background(), inviteParams(env, catalogueID, recipient))
		require.NoError(t, err)
	}

	seats, err := env.invites.CountSeats(context.Background(), catalogueID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), seats)
}

func TestRevokeInvitationReleasesSeat(t *testing.T) {
	t.Parallel()

	env := newInviteEnv(t, plans.TierFree, nil)
	catalogueID := uuid.New()

	inv, err := env.svc.InviteTeamMember(context.Background(), inviteParams(env, catalogueID, "first@example.com"))
	require.NoError(t, err)

	_, err = env.svc.InviteTeamMember(context.Background(), inviteParams(env, catalogueID, "second@example.com"))
	require.ErrorIs(t, err, entitlement.ErrLimitExceeded)

	require.NoError(t, env.svc.RevokeInvitation(context.Background(), inv.ID))

	_, err = env.svc.InviteTeamMember(context.Background(), inviteParams(env, catalogueID, "second@example.com"))
	require.NoError(t, err)
}

func TestInviteTeamMemberInvalidParams(t *testing.T) {
	t.Parallel()

	env := newInviteEnv(t, plans.TierStandard, nil)

	tests := []struct {
		name   string
		params billing.InviteParams
	}{
		{"missing account", billing.InviteParams{CatalogueID: uuid.New(), Email: "x@example.com"}},
		{"missing catalogue", billing.InviteParams{AccountID: uuid.New(), Email: "x@example.com"}},
		{"missing email", billing.InviteParams{AccountID: uuid.New(), CatalogueID: uuid.New()}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := env.svc.InviteTeamMember(context.Background(), tc.params)
			assert.ErrorIs(t, err, billing.ErrInvalidParams)
		})
	}
}

func TestMemInvitationStoreAccept(t *testing.T) {
	t.Parallel()

	store := billing.NewMemInvitationStore()
	catalogueID := uuid.New()
	inv := &billing.Invitation{
		ID:          uuid.New(),
		CatalogueID: catalogueID,
		AccountID:   uuid.New(),
		Email:       "member@example.com",
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, store.Create(context.Background(), inv, plans.Unlimited,
		func(context.Context) error { return nil }))

	require.NoError(t, store.Accept(context.Background(), inv.ID))

	// An accepted invitation keeps its seat and cannot be revoked.
	seats, err := store.CountSeats(context.Background(), catalogueID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seats)
	assert.ErrorIs(t, store.Revoke(context.Background(), inv.ID), billing.ErrInvitationNotFound)

	invitations, err := store.ListByCatalogue(context.Background(), catalogueID)
	require.NoError(t, err)
	require.Len(t, invitations, 1)
	assert.NotNil(t, invitations[0].AcceptedAt)
	assert.False(t, invitations[0].Pending())
}
