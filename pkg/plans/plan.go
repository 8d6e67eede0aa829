package plans

import "slices"

// Money represents a monetary amount in the smallest currency unit.
// For example, $19.00 USD is Amount: 1900, Currency: "USD".
type Money struct {
	Amount   int64  `yaml:"amount"`
	Currency string `yaml:"currency"`
}

// Plan describes a subscription tier and its resource/feature constraints.
// All entitlement math in the rest of the codebase is expressed against this
// type; no limit constants are duplicated elsewhere.
type Plan struct {
	Tier        Tier                   `yaml:"tier"`
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	Limits      map[Resource]int64     `yaml:"limits"` // -1 represents unlimited
	Features    []Feature              `yaml:"features"`
	Prices      map[BillingCycle]Money `yaml:"prices"` // empty for the free tier
	TrialDays   int                    `yaml:"trial_days"`
}

// Limit returns the numeric limit for a resource. Resources a plan does not
// mention are treated as zero, which fails closed.
func (p Plan) Limit(res Resource) int64 {
	return p.Limits[res]
}

// HasFeature reports whether the feature flag is enabled for this plan.
func (p Plan) HasFeature(f Feature) bool {
	return slices.Contains(p.Features, f)
}

// Price returns the price for the given billing cycle, if one is configured.
func (p Plan) Price(cycle BillingCycle) (Money, bool) {
	m, ok := p.Prices[cycle]
	return m, ok
}
