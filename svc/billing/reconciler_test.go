package billing_test

import (
	"context"
	"encoding/json"
	"fmt"
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
	"github.com/cataloghq/cataloghq/pkg/webhook"
	"github.com/cataloghq/cataloghq/svc/billing"
)

const webhookSecret = "whsec_test"

// newReconcilerEnv wires the service against the HMAC generic provider so
// deliveries go through real signature verification and envelope parsing.
func newReconcilerEnv(t *testing.T) *testEnv {
	t.Helper()

	subs := subscription.NewMemStore()
	coupons := coupon.NewMemStore(testCoupons()...)
	auditStore := audit.NewMemStore()

	provider, err := subscription.NewGenericProvider(subscription.GenericConfig{
		WebhookSecret: webhookSecret,
		MaxEventAge:   5 * time.Minute,
	})
	require.NoError(t, err)

	log := slog.New(slog.DiscardHandler)
	catalog := plans.Default()
	entitlements := entitlement.NewService(catalog, entitlement.NewRegistry(), billing.TierResolver(subs))

	svc := billing.NewService(testConfig(), catalog, subs, coupon.NewLedger(coupons),
		provider, entitlements,
		billing.WithTrail(audit.NewTrail(auditStore, log)),
		billing.WithLogger(log))

	return &testEnv{svc: svc, subs: subs, coupons: coupons, audit: auditStore}
}

type eventData map[string]any

func signedEvent(t *testing.T, eventType string, data eventData) (payload []byte, signature string) {
	t.Helper()

	payload, err := json.Marshal(map[string]any{
		"id":   "evt_" + uuid.NewString()[:8],
		"type": eventType,
		"data": data,
	})
	require.NoError(t, err)
	return payload, webhook.Sign(webhookSecret, payload, time.Now())
}

func checkoutData(accountID uuid.UUID, providerSubID, couponCode string) eventData {
	start := time.Now().UTC().Truncate(time.Second)
	end := start.AddDate(0, 1, 0)
	return eventData{
		"subscription_id": providerSubID,
		"session_id":      "cs_evt",
		"account_id":      accountID.String(),
		"status":          "active",
		"tier":            "standard",
		"cycle":           "monthly",
		"amount":          1900,
		"currency":        "USD",
		"period_start":    start.Format(time.RFC3339),
		"period_end":      end.Format(time.RFC3339),
		"coupon_code":     couponCode,
	}
}

func TestApplyWebhookEventRejectsBadSignature(t *testing.T) {
	t.Parallel()

	env := newReconcilerEnv(t)
	payload, _ := signedEvent(t, "checkout.completed", checkoutData(uuid.New(), "sub_1", ""))

	err := env.svc.ApplyWebhookEvent(context.Background(), payload, "t=1,v1=deadbeef")
	require.ErrorIs(t, err, subscription.ErrSignatureInvalid)

	// Rejected before any processing: no subscription, no audit entry.
	_, err = env.subs.GetByProviderID(context.Background(), "sub_1")
	assert.ErrorIs(t, err, subscription.ErrNotFound)
	assert.Empty(t, env.audit.All())
}

func TestApplyWebhookEventCheckoutCompleted(t *testing.T) {
	t.Parallel()

	env := newReconcilerEnv(t)
	accountID := uuid.New()
	payload, sig := signedEvent(t, "checkout.completed", checkoutData(accountID, "sub_co_1", "HALF"))

	require.NoError(t, env.svc.ApplyWebhookEvent(context.Background(), payload, sig))

	sub, err := env.subs.GetByProviderID(context.Background(), "sub_co_1")
	require.NoError(t, err)
	assert.Equal(t, accountID, sub.AccountID)
	assert.Equal(t, subscription.StatusActive, sub.Status)
	assert.Equal(t, plans.TierStandard, sub.Tier)
	assert.Equal(t, int64(1900), sub.Amount.Amount)

	// The coupon that rode along was redeemed exactly once.
	c, err := env.coupons.FindByCode(context.Background(), "HALF")
	require.NoError(t, err)
	used, err := env.coupons.CustomerUsageCount(context.Background(), c.ID, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), used)

	events := env.audit.All()
	require.Len(t, events, 1)
	assert.True(t, events[0].Processed)
	assert.Equal(t, "checkout_completed", events[0].EventType)
}

func TestApplyWebhookEventCheckoutReplay(t *testing.T) {
	t.Parallel()

	env := newReconcilerEnv(t)
	accountID := uuid.New()
	payload, sig := signedEvent(t, "checkout.completed", checkoutData(accountID, "sub_replay", "HALF"))

	require.NoError(t, env.svc.ApplyWebhookEvent(context.Background(), payload, sig))
	require.NoError(t, env.svc.ApplyWebhookEvent(context.Background(), payload, sig))

	c, err := env.coupons.FindByCode(context.Background(), "HALF")
	require.NoError(t, err)
	used, err := env.coupons.CustomerUsageCount(context.Background(), c.ID, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), used, "replayed delivery must not redeem twice")

	// Both deliveries were applied cleanly and audited.
	events := env.audit.All()
	require.Len(t, events, 2)
	for _, event := range events {
		assert.True(t, event.Processed)
	}
}

func TestApplyWebhookEventLifecycle(t *testing.T) {
	t.Parallel()

	env := newReconcilerEnv(t)
	accountID := uuid.New()
	const providerSubID = "sub_life"

	apply := func(eventType string, data eventData) {
		t.Helper()
		payload, sig := signedEvent(t, eventType, data)
		require.NoError(t, env.svc.ApplyWebhookEvent(context.Background(), payload, sig))
	}
	statusIs := func(want subscription.Status) {
		t.Helper()
		sub, err := env.subs.GetByProviderID(context.Background(), providerSubID)
		require.NoError(t, err)
		assert.Equal(t, want, sub.Status)
	}

	apply("checkout.completed", checkoutData(accountID, providerSubID, ""))
	statusIs(subscription.StatusActive)

	apply("invoice.payment_failed", eventData{"subscription_id": providerSubID, "account_id": accountID.String()})
	statusIs(subscription.StatusPastDue)

	apply("invoice.payment_succeeded", eventData{"subscription_id": providerSubID, "account_id": accountID.String()})
	statusIs(subscription.StatusActive)

	apply("subscription.deleted", eventData{"subscription_id": providerSubID, "account_id": accountID.String()})
	statusIs(subscription.StatusCanceled)
}

func TestApplyWebhookEventUpdateSyncsPeriod(t *testing.T) {
	t.Parallel()

	env := newReconcilerEnv(t)
	accountID := uuid.New()
	apply := func(eventType string, data eventData) {
		t.Helper()
		payload, sig := signedEvent(t, eventType, data)
		require.NoError(t, env.svc.ApplyWebhookEvent(context.Background(), payload, sig))
	}

	apply("checkout.completed", checkoutData(accountID, "sub_upd", ""))

	newEnd := time.Now().UTC().AddDate(0, 2, 0).Truncate(time.Second)
	apply("subscription.updated", eventData{
		"subscription_id":      "sub_upd",
		"account_id":           accountID.String(),
		"status":               "active",
		"period_end":           newEnd.Format(time.RFC3339),
		"cancel_at_period_end": true,
	})

	sub, err := env.subs.GetByProviderID(context.Background(), "sub_upd")
	require.NoError(t, err)
	assert.True(t, sub.CancelAtPeriodEnd)
	assert.True(t, sub.PeriodEnd.Equal(newEnd))
	// Tier and amount never change through updates.
	assert.Equal(t, plans.TierStandard, sub.Tier)
	assert.Equal(t, int64(1900), sub.Amount.Amount)
}

func TestApplyWebhookEventSwallowsProcessingFailures(t *testing.T) {
	t.Parallel()

	t.Run("malformed payload", func(t *testing.T) {
		t.Parallel()
		env := newReconcilerEnv(t)

		payload := []byte(`{"type": "checkout.completed", "data":`)
		sig := webhook.Sign(webhookSecret, payload, time.Now())

		require.NoError(t, env.svc.ApplyWebhookEvent(context.Background(), payload, sig))

		events := env.audit.All()
		require.Len(t, events, 1)
		assert.False(t, events[0].Processed)
	})

	t.Run("unparseable account id", func(t *testing.T) {
		t.Parallel()
		env := newReconcilerEnv(t)

		payload, sig := signedEvent(t, "checkout.completed", eventData{
			"subscription_id": "sub_bad",
			"account_id":      "not-a-uuid",
			"status":          "active",
		})
		require.NoError(t, env.svc.ApplyWebhookEvent(context.Background(), payload, sig))

		_, err := env.subs.GetByProviderID(context.Background(), "sub_bad")
		assert.ErrorIs(t, err, subscription.ErrNotFound)

		events := env.audit.All()
		require.Len(t, events, 1)
		assert.False(t, events[0].Processed)
	})

	t.Run("unknown event type is acked", func(t *testing.T) {
		t.Parallel()
		env := newReconcilerEnv(t)

		payload, sig := signedEvent(t, "payout.created", eventData{})
		require.NoError(t, env.svc.ApplyWebhookEvent(context.Background(), payload, sig))

		events := env.audit.All()
		require.Len(t, events, 1)
		assert.True(t, events[0].Processed)
		assert.Equal(t, string(subscription.EventUnknown), events[0].EventType)
	})
}

// TestApplyWebhookEventSubscriptionCreatedIsInformational verifies that the
// creation event alone does not materialize a local row.
func TestApplyWebhookEventSubscriptionCreatedIsInformational(t *testing.T) {
	t.Parallel()

	env := newReconcilerEnv(t)
	payload, sig := signedEvent(t, "subscription.created", eventData{
		"subscription_id": "sub_created_only",
		"account_id":      uuid.New().String(),
	})
	require.NoError(t, env.svc.ApplyWebhookEvent(context.Background(), payload, sig))

	_, err := env.subs.GetByProviderID(context.Background(), "sub_created_only")
	assert.ErrorIs(t, err, subscription.ErrNotFound)

	events := env.audit.All()
	require.Len(t, events, 1)
	assert.True(t, events[0].Processed)
}

// Exercised here rather than in a fake because the generic provider is the
// path self-hosted deployments run in production.
func TestGenericProviderRoundTrip(t *testing.T) {
	t.Parallel()

	env := newReconcilerEnv(t)
	accountID := uuid.New()

	for i := range 3 {
		payload, sig := signedEvent(t, "checkout.completed",
			checkoutData(accountID, fmt.Sprintf("sub_rt_%d", i), ""))
		require.NoError(t, env.svc.ApplyWebhookEvent(context.Background(), payload, sig))
	}

	recent, err := env.audit.Recent(context.Background(), "generic", 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}
