package coupon

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cataloghq/cataloghq/pkg/plans"
)

// EligibilityFunc is a per-coupon additional eligibility predicate. It runs
// after the generic checks pass and returns a non-nil error to refuse the
// coupon. One-off business rules live here so the generic validation path
// stays generic.
type EligibilityFunc func(ctx context.Context, accountID uuid.UUID) error

// Ledger validates coupon codes and records redemptions.
type Ledger struct {
	store       Store
	eligibility map[string]EligibilityFunc
	now         func() time.Time
}

// LedgerOption configures optional Ledger behavior.
type LedgerOption func(*Ledger)

// WithEligibility attaches an extra eligibility predicate to one coupon code.
func WithEligibility(code string, fn EligibilityFunc) LedgerOption {
	return func(l *Ledger) {
		l.eligibility[NormalizeCode(code)] = fn
	}
}

// WithClock overrides the time source, used by tests with fixed clocks.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		l.now = now
	}
}

// NewLedger creates a Ledger backed by the given store.
// Panics on a nil store to fail fast during initialization.
func NewLedger(store Store, opts ...LedgerOption) *Ledger {
	if store == nil {
		panic("coupon: Store is required")
	}

	l := &Ledger{
		store:       store,
		eligibility: make(map[string]EligibilityFunc),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Validate checks a coupon against the account and the proposed charge and
// returns a discount quote. Rejections come back as *Rejection with a stable
// reason; checks run in a fixed priority order so the caller always sees the
// highest-priority refusal.
//
// Validate is advisory pre-flight: Redeem re-checks the usage predicates
// inside its own transaction.
func (l *Ledger) Validate(ctx context.Context, code string, cycle plans.BillingCycle, amount int64, accountID uuid.UUID) (*Quote, error) {
	normalized := NormalizeCode(code)

	c, err := l.store.FindByCode(ctx, normalized)
	if err != nil {
		return nil, err
	}

	now := l.now()
	switch {
	case !c.Active:
		return nil, Reject(normalized, ReasonInactive)
	case c.ValidUntil != nil && c.ValidUntil.Before(now):
		return nil, Reject(normalized, ReasonExpired)
	case c.ValidFrom != nil && c.ValidFrom.After(now):
		return nil, Reject(normalized, ReasonNotYetValid)
	case !c.CycleAllowed(cycle):
		return nil, Reject(normalized, ReasonWrongBillingCycle)
	}

	used, err := l.store.CustomerUsageCount(ctx, c.ID, accountID)
	if err != nil {
		return nil, err
	}
	if used >= c.LimitPerCustomer {
		return nil, Reject(normalized, ReasonAlreadyUsed)
	}

	if c.LimitTotal != nil && c.UsedCount >= *c.LimitTotal {
		return nil, Reject(normalized, ReasonLimitReached)
	}

	if fn, ok := l.eligibility[normalized]; ok {
		if err := fn(ctx, accountID); err != nil {
			return nil, Reject(normalized, ReasonNotEligible)
		}
	}

	discount := c.DiscountFor(amount)
	return &Quote{
		Coupon:         c,
		DiscountAmount: discount,
		FinalAmount:    amount - discount,
	}, nil
}

// Redeem records a redemption for the account and subscription. It delegates
// to the store, whose transaction is the authority on usage limits.
func (l *Ledger) Redeem(ctx context.Context, couponID, accountID, subscriptionID uuid.UUID) (*Usage, error) {
	return l.store.Redeem(ctx, couponID, accountID, subscriptionID)
}

// Lookup finds a coupon by code without running any validation checks.
// Webhook reconciliation uses it to resolve codes attached to checkout
// sessions the provider has already honored.
func (l *Ledger) Lookup(ctx context.Context, code string) (*Coupon, error) {
	return l.store.FindByCode(ctx, NormalizeCode(code))
}

// CustomerUsage returns how many times the account has redeemed the coupon.
func (l *Ledger) CustomerUsage(ctx context.Context, couponID, accountID uuid.UUID) (int64, error) {
	return l.store.CustomerUsageCount(ctx, couponID, accountID)
}

// NewCustomerOnly builds the launch-promo eligibility rule: the account must
// have been created inside the window and must have no prior subscription in
// a non-trivial status. Both lookups are injected so the rule stays free of
// storage concerns. A nil clock uses time.Now.
func NewCustomerOnly(
	window time.Duration,
	accountCreatedAt func(ctx context.Context, accountID uuid.UUID) (time.Time, error),
	hasPriorSubscription func(ctx context.Context, accountID uuid.UUID) (bool, error),
	now func() time.Time,
) EligibilityFunc {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, accountID uuid.UUID) error {
		createdAt, err := accountCreatedAt(ctx, accountID)
		if err != nil {
			return err
		}
		if now().Sub(createdAt) > window {
			return Reject("", ReasonNotEligible)
		}

		prior, err := hasPriorSubscription(ctx, accountID)
		if err != nil {
			return err
		}
		if prior {
			return Reject("", ReasonNotEligible)
		}
		return nil
	}
}
