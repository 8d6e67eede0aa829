package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cataloghq/cataloghq/pkg/artifact"
	"github.com/cataloghq/cataloghq/pkg/audit"
	"github.com/cataloghq/cataloghq/pkg/coupon"
	"github.com/cataloghq/cataloghq/pkg/email"
	"github.com/cataloghq/cataloghq/pkg/entitlement"
	"github.com/cataloghq/cataloghq/pkg/plans"
	"github.com/cataloghq/cataloghq/pkg/subscription"
)

// Config holds the transport-independent billing settings.
type Config struct {
	ProviderName       string `env:"BILLING_PROVIDER" envDefault:"paddle"`
	CheckoutSuccessURL string `env:"BILLING_CHECKOUT_SUCCESS_URL,required"`
	CheckoutCancelURL  string `env:"BILLING_CHECKOUT_CANCEL_URL,required"`
	InviteAcceptURL    string `env:"BILLING_INVITE_ACCEPT_URL,required"`
}

// PriceTable maps tier and cycle to the payment provider's price identifier.
// The free tier never appears here; it checks out locally.
type PriceTable map[plans.Tier]map[plans.BillingCycle]string

// Lookup returns the provider price ID for the combination, if configured.
func (t PriceTable) Lookup(tier plans.Tier, cycle plans.BillingCycle) (string, bool) {
	id, ok := t[tier][cycle]
	return id, ok && id != ""
}

// Service is the billing facade. All account-facing billing operations go
// through it; lower-level packages never call each other directly.
type Service struct {
	config       Config
	catalog      *plans.Catalog
	subs         subscription.Store
	coupons      *coupon.Ledger
	provider     subscription.Provider
	entitlements *entitlement.Service
	invitations  InvitationStore
	sender       email.Sender
	exports      ExportStore
	artifacts    artifact.Store
	trail        *audit.Trail
	prices       PriceTable
	log          *slog.Logger
	now          func() time.Time
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithTrail attaches the webhook audit trail.
func WithTrail(t *audit.Trail) Option {
	return func(s *Service) { s.trail = t }
}

// WithInvitations attaches the team-invitation store and the email sender
// used inside its unit of work.
func WithInvitations(store InvitationStore, sender email.Sender) Option {
	return func(s *Service) {
		s.invitations = store
		s.sender = sender
	}
}

// WithExports attaches the export-run store and the artifact store that
// keeps the produced documents.
func WithExports(store ExportStore, artifacts artifact.Store) Option {
	return func(s *Service) {
		s.exports = store
		s.artifacts = artifacts
	}
}

// WithPriceTable sets the provider price identifiers for paid tiers.
func WithPriceTable(t PriceTable) Option {
	return func(s *Service) { s.prices = t }
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithClock overrides the time source, used by tests with fixed clocks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the billing facade.
// Panics on nil required dependencies to fail fast during initialization.
func NewService(
	cfg Config,
	catalog *plans.Catalog,
	subs subscription.Store,
	coupons *coupon.Ledger,
	provider subscription.Provider,
	entitlements *entitlement.Service,
	opts ...Option,
) *Service {
	if catalog == nil {
		panic("billing: plan catalog is required")
	}
	if subs == nil {
		panic("billing: subscription store is required")
	}
	if coupons == nil {
		panic("billing: coupon ledger is required")
	}
	if provider == nil {
		panic("billing: payment provider is required")
	}
	if entitlements == nil {
		panic("billing: entitlement service is required")
	}

	s := &Service{
		config:       cfg,
		catalog:      catalog,
		subs:         subs,
		coupons:      coupons,
		provider:     provider,
		entitlements: entitlements,
		log:          slog.Default(),
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TierResolver builds the effective-tier lookup used by the entitlement
// service: the most recent counting subscription's tier, or the free floor
// when the account has none. Exposed as a package function so the
// entitlement service can be constructed before the billing facade.
func TierResolver(subs subscription.Store) entitlement.TierResolver {
	return func(ctx context.Context, accountID uuid.UUID) (plans.Tier, error) {
		sub, err := subs.LatestCounting(ctx, accountID)
		if errors.Is(err, subscription.ErrNotFound) {
			return plans.TierFree, nil
		}
		if err != nil {
			return "", err
		}
		return sub.Tier, nil
	}
}

// EffectivePlan returns the full plan the account is entitled to right now.
func (s *Service) EffectivePlan(ctx context.Context, accountID uuid.UUID) (plans.Plan, error) {
	sub, err := s.subs.LatestCounting(ctx, accountID)
	if errors.Is(err, subscription.ErrNotFound) {
		return s.catalog.Get(plans.TierFree), nil
	}
	if err != nil {
		return plans.Plan{}, err
	}
	return s.catalog.Get(sub.Tier), nil
}

// CurrentSubscription returns the account's counting subscription, or
// subscription.ErrNotFound when the account sits on the free floor.
func (s *Service) CurrentSubscription(ctx context.Context, accountID uuid.UUID) (*subscription.Subscription, error) {
	return s.subs.LatestCounting(ctx, accountID)
}

// CheckEntitlement reports whether the account may create one more unit of
// the resource. The answer is advisory at check time; writes re-check inside
// their own transactions.
func (s *Service) CheckEntitlement(ctx context.Context, accountID uuid.UUID, res plans.Resource, scope uuid.UUID) error {
	return s.entitlements.CanCreate(ctx, accountID, res, scope)
}

// HasFeature reports whether the account's effective plan enables the feature.
func (s *Service) HasFeature(ctx context.Context, accountID uuid.UUID, feature plans.Feature) bool {
	return s.entitlements.HasFeature(ctx, accountID, feature)
}

// Usage returns current usage against the effective plan's limits, keyed by
// resource, for dashboards.
func (s *Service) Usage(ctx context.Context, accountID uuid.UUID) (map[plans.Resource]entitlement.UsageInfo, error) {
	return s.entitlements.AllUsage(ctx, accountID)
}

// CanDowngrade reports whether the account's current usage fits inside the
// target tier's limits.
func (s *Service) CanDowngrade(ctx context.Context, accountID uuid.UUID, target plans.Tier) error {
	return s.entitlements.CanDowngrade(ctx, accountID, target)
}

// ValidateCoupon prices the tier and cycle and asks the ledger for a
// discount quote. Rejections surface as *coupon.Rejection with a stable
// reason code.
func (s *Service) ValidateCoupon(ctx context.Context, accountID uuid.UUID, code string, tier plans.Tier, cycle plans.BillingCycle) (*coupon.Quote, error) {
	price, ok := s.catalog.Get(tier).Price(cycle)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrPriceNotConfigured, tier, cycle)
	}
	return s.coupons.Validate(ctx, code, cycle, price.Amount, accountID)
}

// CheckoutParams describes a checkout request.
type CheckoutParams struct {
	AccountID  uuid.UUID
	Email      string
	Tier       plans.Tier
	Cycle      plans.BillingCycle
	CouponCode string
}

func (p CheckoutParams) validate() error {
	switch {
	case p.AccountID == uuid.Nil:
		return fmt.Errorf("%w: account ID is required", ErrInvalidParams)
	case !p.Tier.Valid():
		return fmt.Errorf("%w: unknown tier %q", ErrInvalidParams, p.Tier)
	case !p.Cycle.Valid():
		return fmt.Errorf("%w: unknown billing cycle %q", ErrInvalidParams, p.Cycle)
	}
	return nil
}

// CheckoutResult is either an immediately active local subscription (free
// tier) or a hosted checkout session to redirect the user to.
type CheckoutResult struct {
	Subscription *subscription.Subscription
	CheckoutURL  string
	SessionID    string
}

// Checkout starts a subscription purchase. The free tier activates locally
// without touching the provider; paid tiers get a hosted checkout link with
// the coupon, when given, validated first and attached to the session.
func (s *Service) Checkout(ctx context.Context, params CheckoutParams) (*CheckoutResult, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	if params.Tier == plans.TierFree {
		sub := subscription.NewLocal(params.AccountID, params.Tier, params.Cycle, s.now())
		if err := s.subs.CreateLocal(ctx, sub); err != nil {
			return nil, err
		}
		s.log.InfoContext(ctx, "free tier activated locally",
			slog.String("account_id", params.AccountID.String()),
			slog.String("subscription_id", sub.ID.String()))
		return &CheckoutResult{Subscription: sub}, nil
	}

	if params.CouponCode != "" {
		if _, err := s.ValidateCoupon(ctx, params.AccountID, params.CouponCode, params.Tier, params.Cycle); err != nil {
			return nil, err
		}
	}

	priceID, ok := s.prices.Lookup(params.Tier, params.Cycle)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrPriceNotConfigured, params.Tier, params.Cycle)
	}

	link, err := s.provider.CreateCheckoutLink(ctx, subscription.CheckoutRequest{
		PriceID:    priceID,
		AccountID:  params.AccountID.String(),
		Email:      params.Email,
		CouponCode: params.CouponCode,
		SuccessURL: s.config.CheckoutSuccessURL,
		CancelURL:  s.config.CheckoutCancelURL,
	})
	if err != nil {
		return nil, err
	}
	return &CheckoutResult{CheckoutURL: link.URL, SessionID: link.SessionID}, nil
}

// CustomerPortal returns a temporary link to the provider's customer portal.
// Accounts without a provider-backed subscription have nothing to manage
// there and get ErrNoProviderSubscription.
func (s *Service) CustomerPortal(ctx context.Context, accountID uuid.UUID) (*subscription.PortalLink, error) {
	sub, err := s.subs.LatestCounting(ctx, accountID)
	if errors.Is(err, subscription.ErrNotFound) {
		return nil, ErrNoProviderSubscription
	}
	if err != nil {
		return nil, err
	}
	if sub.ProviderSubID == "" {
		return nil, ErrNoProviderSubscription
	}
	return s.provider.GetCustomerPortalLink(ctx, sub)
}
