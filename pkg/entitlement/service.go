package entitlement

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/cataloghq/cataloghq/pkg/plans"
)

// TierResolver resolves the effective plan tier for an account. The billing
// service wires this to the most recent subscription in a counting status,
// falling back to the free tier when the account has none.
type TierResolver func(ctx context.Context, accountID uuid.UUID) (plans.Tier, error)

// UsageInfo contains the current usage and limit for a resource.
type UsageInfo struct {
	Current int64 `json:"current"`
	Limit   int64 `json:"limit"`
}

// Service answers admission-control questions against the plan catalog and
// live usage counts. Checks are advisory at check-time; creation paths that
// gate a scarce resource must re-check inside the same transaction as the
// insert.
type Service struct {
	catalog  *plans.Catalog
	counters CounterRegistry
	resolver TierResolver
	override OverridePolicy
}

// Option configures optional Service behavior.
type Option func(*Service)

// WithOverridePolicy installs a bypass policy consulted before limit checks.
func WithOverridePolicy(p OverridePolicy) Option {
	return func(s *Service) {
		s.override = p
	}
}

// NewService creates an entitlement Service.
// Panics on nil required dependencies to fail fast during initialization.
func NewService(catalog *plans.Catalog, counters CounterRegistry, resolver TierResolver, opts ...Option) *Service {
	if catalog == nil {
		panic("entitlement: plan catalog is required")
	}
	if resolver == nil {
		panic("entitlement: tier resolver is required")
	}
	if counters == nil {
		counters = NewRegistry()
	}

	s := &Service{
		catalog:  catalog,
		counters: counters,
		resolver: resolver,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CanCreate reports whether the account may create one more instance of the
// resource. The scope narrows the count for nested resources; pass uuid.Nil
// otherwise. Returns nil when allowed, ErrLimitExceeded when the plan limit
// is reached, or a joined error when the check itself failed.
func (s *Service) CanCreate(ctx context.Context, accountID uuid.UUID, res plans.Resource, scope uuid.UUID) error {
	if s.override != nil && s.override.Allows(accountID, res) {
		return nil
	}

	plan, err := s.effectivePlan(ctx, accountID)
	if err != nil {
		return err
	}

	limit := plan.Limit(res)
	if limit == plans.Unlimited {
		return nil
	}

	current, err := s.count(ctx, accountID, res, scope)
	if err != nil {
		return err
	}

	if current >= limit {
		return ErrLimitExceeded
	}
	return nil
}

// LimitBypassed reports whether the override policy exempts the account from
// limit checks on the resource. Creation paths that re-check limits inside
// their own transactions use this to carry the bypass through to the
// authoritative check.
func (s *Service) LimitBypassed(accountID uuid.UUID, res plans.Resource) bool {
	return s.override != nil && s.override.Allows(accountID, res)
}

// Usage returns the current usage and limit for one resource.
func (s *Service) Usage(ctx context.Context, accountID uuid.UUID, res plans.Resource, scope uuid.UUID) (UsageInfo, error) {
	plan, err := s.effectivePlan(ctx, accountID)
	if err != nil {
		return UsageInfo{}, err
	}

	current, err := s.count(ctx, accountID, res, scope)
	if err != nil {
		return UsageInfo{}, err
	}

	return UsageInfo{Current: current, Limit: plan.Limit(res)}, nil
}

// AllUsage returns usage for every resource the effective plan limits,
// counted account-wide. Counter errors leave the resource's usage at zero
// rather than failing the whole report; dashboards prefer partial data.
func (s *Service) AllUsage(ctx context.Context, accountID uuid.UUID) (map[plans.Resource]UsageInfo, error) {
	plan, err := s.effectivePlan(ctx, accountID)
	if err != nil {
		return nil, err
	}

	result := make(map[plans.Resource]UsageInfo, len(plan.Limits))
	for res, limit := range plan.Limits {
		info := UsageInfo{Limit: limit}
		if counter, ok := s.counters[res]; ok {
			if current, err := counter(ctx, accountID, uuid.Nil); err == nil {
				info.Current = current
			}
		}
		result[res] = info
	}
	return result, nil
}

// HasFeature reports whether the account's effective plan includes the
// feature. Resolution failures read as "no".
func (s *Service) HasFeature(ctx context.Context, accountID uuid.UUID, feature plans.Feature) bool {
	plan, err := s.effectivePlan(ctx, accountID)
	if err != nil {
		return false
	}
	return plan.HasFeature(feature)
}

// CanDowngrade reports whether the account's account-wide usage fits inside
// the target tier's limits. Resources without a registered counter cannot be
// verified and are allowed through.
func (s *Service) CanDowngrade(ctx context.Context, accountID uuid.UUID, target plans.Tier) error {
	current, err := s.effectivePlan(ctx, accountID)
	if err != nil {
		return err
	}
	targetPlan := s.catalog.Get(target)

	for res, targetLimit := range targetPlan.Limits {
		if targetLimit == plans.Unlimited {
			continue
		}

		currentLimit := current.Limit(res)
		if currentLimit != plans.Unlimited && currentLimit <= targetLimit {
			continue
		}

		counter, ok := s.counters[res]
		if !ok {
			continue
		}
		used, err := counter(ctx, accountID, uuid.Nil)
		if err != nil {
			return errors.Join(ErrFailedToCountUsage, err)
		}
		if used > targetLimit {
			return ErrDowngradeBlocked
		}
	}
	return nil
}

func (s *Service) effectivePlan(ctx context.Context, accountID uuid.UUID) (plans.Plan, error) {
	tier, err := s.resolver(ctx, accountID)
	if err != nil {
		return plans.Plan{}, errors.Join(ErrFailedToResolveTier, err)
	}
	return s.catalog.Get(tier), nil
}

func (s *Service) count(ctx context.Context, accountID uuid.UUID, res plans.Resource, scope uuid.UUID) (int64, error) {
	counter, ok := s.counters[res]
	if !ok {
		return 0, ErrNoCounterRegistered
	}
	current, err := counter(ctx, accountID, scope)
	if err != nil {
		return 0, errors.Join(ErrFailedToCountUsage, err)
	}
	return current, nil
}
