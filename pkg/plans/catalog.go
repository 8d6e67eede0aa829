package plans

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Source defines how the plan catalog is loaded at startup.
type Source interface {
	Load(ctx context.Context) (map[Tier]Plan, error)
}

// Catalog holds the static table of plan tiers. It is immutable after
// construction and safe for concurrent use.
type Catalog struct {
	plans map[Tier]Plan
}

// NewCatalog loads and validates plans from the given source.
// Every tier must be present so that Get stays a total function.
func NewCatalog(ctx context.Context, src Source) (*Catalog, error) {
	if src == nil {
		panic("plans: Source is required")
	}

	loaded, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	for _, tier := range Tiers() {
		plan, ok := loaded[tier]
		if !ok {
			return nil, errors.Join(ErrInvalidCatalog, fmt.Errorf("missing plan for tier %q", tier))
		}
		if plan.Tier != tier {
			return nil, errors.Join(ErrInvalidCatalog, fmt.Errorf("tier mismatch: map key %q != plan.Tier %q", tier, plan.Tier))
		}
		for res, limit := range plan.Limits {
			if limit < Unlimited {
				return nil, errors.Join(ErrInvalidCatalog, fmt.Errorf("plan %q has invalid limit %d for %q", tier, limit, res))
			}
		}
	}

	plansCopy := make(map[Tier]Plan, len(loaded))
	for tier, plan := range loaded {
		plan.Limits = maps.Clone(plan.Limits)
		plan.Features = slices.Clone(plan.Features)
		plan.Prices = maps.Clone(plan.Prices)
		plansCopy[tier] = plan
	}

	return &Catalog{plans: plansCopy}, nil
}

// MustNewCatalog is like NewCatalog but panics on error. Intended for startup
// wiring where a broken catalog must prevent the service from starting.
func MustNewCatalog(ctx context.Context, src Source) *Catalog {
	c, err := NewCatalog(ctx, src)
	if err != nil {
		panic(err)
	}
	return c
}

// Get returns the plan for a tier. It is total: unknown tiers cannot occur
// because Tier is a closed enumeration, and any zero value falls back to the
// free tier rather than failing.
func (c *Catalog) Get(tier Tier) Plan {
	if plan, ok := c.plans[tier]; ok {
		return plan
	}
	return c.plans[TierFree]
}

// Default returns a catalog backed by the built-in plan table.
func Default() *Catalog {
	return MustNewCatalog(context.Background(), NewStaticSource(defaultPlans()))
}

// staticSource serves a fixed plan map, used for the built-in defaults and tests.
type staticSource struct {
	plans map[Tier]Plan
}

// NewStaticSource returns a Source serving the given plan map as-is.
func NewStaticSource(plans map[Tier]Plan) Source {
	return &staticSource{plans: plans}
}

func (s *staticSource) Load(_ context.Context) (map[Tier]Plan, error) {
	return s.plans, nil
}
