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

	"github.com/cataloghq/cataloghq/pkg/audit"
	"github.com/cataloghq/cataloghq/pkg/coupon"
	"github.com/cataloghq/cataloghq/pkg/entitlement"
	"github.com/cataloghq/cataloghq/pkg/plans"
	"github.com/cataloghq/cataloghq/pkg/subscription"
	"github.com/cataloghq/cataloghq/svc/billing"
)

type fakeProvider struct {
	lastCheckout subscription.CheckoutRequest
	checkoutErr  error
	portalURL    string
	parse        func(ctx context.Context, payload []byte, signature string) (*subscription.Event, error)
}

func (p *fakeProvider) CreateCheckoutLink(_ context.Context, req subscription.CheckoutRequest) (*subscription.CheckoutLink, error) {
	p.lastCheckout = req
	if p.checkoutErr != nil {
		return nil, p.checkoutErr
	}
	return &subscription.CheckoutLink{
		URL:       "https://pay.example.com/session/cs_123",
		SessionID: "cs_123",
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func (p *fakeProvider) GetCustomerPortalLink(_ context.Context, _ *subscription.Subscription) (*subscription.PortalLink, error) {
	return &subscription.PortalLink{URL: p.portalURL, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (p *fakeProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*subscription.Event, error) {
	if p.parse == nil {
		return nil, subscription.ErrMalformedEvent
	}
	return p.parse(ctx, payload, signature)
}

type testEnv struct {
	svc      *billing.Service
	subs     *subscription.MemStore
	coupons  *coupon.MemStore
	provider *fakeProvider
	audit    *audit.MemStore
}

func testConfig() billing.Config {
	return billing.Config{
		ProviderName:       "generic",
		CheckoutSuccessURL: "https://app.example.com/billing/success",
		CheckoutCancelURL:  "https://app.example.com/billing/cancel",
		InviteAcceptURL:    "https://app.example.com/invitations/accept",
	}
}

func testPrices() billing.PriceTable {
	return billing.PriceTable{
		plans.TierStandard: {
			plans.CycleMonthly: "pri_std_m",
			plans.CycleYearly:  "pri_std_y",
		},
		plans.TierProfessional: {
			plans.CycleMonthly: "pri_pro_m",
		},
	}
}

func testCoupons() []*coupon.Coupon {
	limit := int64(100)
	return []*coupon.Coupon{
		{
			ID:               uuid.New(),
			Code:             "HALF",
			Type:             coupon.DiscountPercentage,
			Value:            50,
			Active:           true,
			LimitTotal:       &limit,
			LimitPerCustomer: 1,
		},
		{
			ID:               uuid.New(),
			Code:             "DEAD",
			Type:             coupon.DiscountPercentage,
			Value:            10,
			Active:           false,
			LimitPerCustomer: 1,
		},
	}
}

func newTestEnv(t *testing.T, opts ...billing.Option) *testEnv {
	t.Helper()

	subs := subscription.NewMemStore()
	coupons := coupon.NewMemStore(testCoupons()...)
	provider := &fakeProvider{portalURL: "https://pay.example.com/portal/xyz"}
	auditStore := audit.NewMemStore()

	log := slog.New(slog.DiscardHandler)
	catalog := plans.Default()
	entitlements := entitlement.NewService(catalog, entitlement.NewRegistry(), billing.TierResolver(subs))

	base := []billing.Option{
		billing.WithPriceTable(testPrices()),
		billing.WithTrail(audit.NewTrail(auditStore, log)),
		billing.WithLogger(log),
	}
	svc := billing.NewService(testConfig(), catalog, subs, coupon.NewLedger(coupons),
		provider, entitlements, append(base, opts...)...)

	return &testEnv{svc: svc, subs: subs, coupons: coupons, provider: provider, audit: auditStore}
}

// activateProviderSub seeds a provider-backed counting subscription.
func activateProviderSub(t *testing.T, env *testEnv, accountID uuid.UUID, tier plans.Tier) *subscription.Subscription {
	t.Helper()

	sub := &subscription.Subscription{
		ID:            uuid.New(),
		AccountID:     accountID,
		ProviderSubID: "sub_" + uuid.NewString()[:8],
		Status:        subscription.StatusActive,
		Tier:          tier,
		Cycle:         plans.CycleMonthly,
		Amount:        subscription.Money{Amount: 1900, Currency: "USD"},
		PeriodStart:   time.Now().UTC(),
		PeriodEnd:     time.Now().UTC().AddDate(0, 1, 0),
	}
	require.NoError(t, env.subs.Upsert(context.Background(), sub))
	return sub
}

func TestCheckoutFreeTier(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	accountID := uuid.New()

	result, err := env.svc.Checkout(context.Background(), billing.CheckoutParams{
		AccountID: accountID,
		Tier:      plans.TierFree,
		Cycle:     plans.CycleMonthly,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Subscription)
	assert.Empty(t, result.CheckoutURL)
	assert.Equal(t, subscription.StatusActive, result.Subscription.Status)

	stored, err := env.subs.LatestCounting(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, plans.TierFree, stored.Tier)
	assert.Empty(t, stored.ProviderSubID)

	// The provider was never involved.
	assert.Empty(t, env.provider.lastCheckout.PriceID)
}

func TestCheckoutPaidTier(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	accountID := uuid.New()

	result, err := env.svc.Checkout(context.Background(), billing.CheckoutParams{
		AccountID:  accountID,
		Email:      "owner@example.com",
		Tier:       plans.TierStandard,
		Cycle:      plans.CycleYearly,
		CouponCode: "half",
	})
	require.NoError(t, err)
	assert.Nil(t, result.Subscription)
	assert.Equal(t, "https://pay.example.com/session/cs_123", result.CheckoutURL)
	assert.Equal(t, "cs_123", result.SessionID)

	req := env.provider.lastCheckout
	assert.Equal(t, "pri_std_y", req.PriceID)
	assert.Equal(t, accountID.String(), req.AccountID)
	assert.Equal(t, "owner@example.com", req.Email)
	assert.Equal(t, "half", req.CouponCode)
	assert.Equal(t, "https://app.example.com/billing/success", req.SuccessURL)
}

func TestCheckoutPriceNotConfigured(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	_, err := env.svc.Checkout(context.Background(), billing.CheckoutParams{
		AccountID: uuid.New(),
		Tier:      plans.TierBusiness,
		Cycle:     plans.CycleMonthly,
	})
	require.ErrorIs(t, err, billing.ErrPriceNotConfigured)
}

func TestCheckoutInvalidParams(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	tests := []struct {
		name   string
		params billing.CheckoutParams
	}{
		{"missing account", billing.CheckoutParams{Tier: plans.TierStandard, Cycle: plans.CycleMonthly}},
		{"unknown tier", billing.CheckoutParams{AccountID: uuid.New(), Tier: "platinum", Cycle: plans.CycleMonthly}},
		{"unknown cycle", billing.CheckoutParams{AccountID: uuid.New(), Tier: plans.TierStandard, Cycle: "weekly"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := env.svc.Checkout(context.Background(), tc.params)
			assert.ErrorIs(t, err, billing.ErrInvalidParams)
		})
	}
}

func TestCheckoutCouponRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	_, err := env.svc.Checkout(context.Background(), billing.CheckoutParams{
		AccountID:  uuid.New(),
		Tier:       plans.TierStandard,
		Cycle:      plans.CycleMonthly,
		CouponCode: "DEAD",
	})
	rejection, ok := coupon.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, coupon.ReasonInactive, rejection.Reason)

	// The rejection stopped the flow before the provider.
	assert.Empty(t, env.provider.lastCheckout.PriceID)
}

func TestCheckoutProviderFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.provider.checkoutErr = errors.Join(subscription.ErrProviderError, errors.New("upstream 502"))

	_, err := env.svc.Checkout(context.Background(), billing.CheckoutParams{
		AccountID: uuid.New(),
		Tier:      plans.TierStandard,
		Cycle:     plans.CycleMonthly,
	})
	require.ErrorIs(t, err, subscription.ErrProviderError)
}

func TestEffectivePlan(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	accountID := uuid.New()

	t.Run("free floor without subscription", func(t *testing.T) {
		plan, err := env.svc.EffectivePlan(context.Background(), accountID)
		require.NoError(t, err)
		assert.Equal(t, plans.TierFree, plan.Tier)
	})

	t.Run("counting subscription wins", func(t *testing.T) {
		activateProviderSub(t, env, accountID, plans.TierProfessional)

		plan, err := env.svc.EffectivePlan(context.Background(), accountID)
		require.NoError(t, err)
		assert.Equal(t, plans.TierProfessional, plan.Tier)
	})
}

func TestTierResolver(t *testing.T) {
	t.Parallel()

	subs := subscription.NewMemStore()
	resolve := billing.TierResolver(subs)
	accountID := uuid.New()

	tier, err := resolve(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, plans.TierFree, tier)

	require.NoError(t, subs.Upsert(context.Background(), &subscription.Subscription{
		AccountID:     accountID,
		ProviderSubID: "sub_resolver",
		Status:        subscription.StatusTrialing,
		Tier:          plans.TierStandard,
		Cycle:         plans.CycleMonthly,
	}))

	tier, err = resolve(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, plans.TierStandard, tier)
}

func TestValidateCoupon(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	quote, err := env.svc.ValidateCoupon(context.Background(), uuid.New(), "HALF", plans.TierStandard, plans.CycleMonthly)
	require.NoError(t, err)
	assert.Equal(t, int64(950), quote.DiscountAmount)
	assert.Equal(t, int64(950), quote.FinalAmount)

	t.Run("free tier has no price to discount", func(t *testing.T) {
		t.Parallel()
		_, err := env.svc.ValidateCoupon(context.Background(), uuid.New(), "HALF", plans.TierFree, plans.CycleMonthly)
		assert.ErrorIs(t, err, billing.ErrPriceNotConfigured)
	})
}

func TestCustomerPortal(t *testing.T) {
	t.Parallel()

	t.Run("no subscription", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		_, err := env.svc.CustomerPortal(context.Background(), uuid.New())
		assert.ErrorIs(t, err, billing.ErrNoProviderSubscription)
	})

	t.Run("local free subscription has no portal", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		accountID := uuid.New()
		_, err := env.svc.Checkout(context.Background(), billing.CheckoutParams{
			AccountID: accountID,
			Tier:      plans.TierFree,
			Cycle:     plans.CycleMonthly,
		})
		require.NoError(t, err)

		_, err = env.svc.CustomerPortal(context.Background(), accountID)
		assert.ErrorIs(t, err, billing.ErrNoProviderSubscription)
	})

	t.Run("provider-backed subscription", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		accountID := uuid.New()
		activateProviderSub(t, env, accountID, plans.TierStandard)

		link, err := env.svc.CustomerPortal(context.Background(), accountID)
		require.NoError(t, err)
		assert.Equal(t, "https://pay.example.com/portal/xyz", link.URL)
	})
}

func TestNewServicePanicsOnNilDeps(t *testing.T) {
	t.Parallel()

	subs := subscription.NewMemStore()
	catalog := plans.Default()
	ledger := coupon.NewLedger(coupon.NewMemStore())
	provider := &fakeProvider{}
	entitlements := entitlement.NewService(catalog, nil, billing.TierResolver(subs))

	assert.Panics(t, func() {
		billing.NewService(testConfig(), nil, subs, ledger, provider, entitlements)
	})
	assert.Panics(t, func() {
		billing.NewService(testConfig(), catalog, subs, ledger, nil, entitlements)
	})
	assert.Panics(t, func() {
		billing.NewService(testConfig(), catalog, subs, ledger, provider, nil)
	})
}
