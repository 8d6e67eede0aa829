package plans

// Tier identifies one of the ordered subscription tiers.
// The set is closed: every account resolves to exactly one of these values.
type Tier string

const (
	TierFree         Tier = "free"
	TierStandard     Tier = "standard"
	TierProfessional Tier = "professional"
	TierBusiness     Tier = "business"
)

// tierRank defines the total order used for upgrade-path logic.
var tierRank = map[Tier]int{
	TierFree:         0,
	TierStandard:     1,
	TierProfessional: 2,
	TierBusiness:     3,
}

// Tiers lists all tiers in ascending order.
func Tiers() []Tier {
	return []Tier{TierFree, TierStandard, TierProfessional, TierBusiness}
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// AtLeast reports whether t is equal to or higher than other in the tier order.
func (t Tier) AtLeast(other Tier) bool {
	return tierRank[t] >= tierRank[other]
}

// Next returns the next tier in the upgrade path. The top tier maps to itself.
func (t Tier) Next() Tier {
	switch t {
	case TierFree:
		return TierStandard
	case TierStandard:
		return TierProfessional
	case TierProfessional:
		return TierBusiness
	default:
		return TierBusiness
	}
}

// Resource represents a countable account resource gated by plan limits.
type Resource string

const (
	ResourceCatalogues  Resource = "catalogues"
	ResourceProducts    Resource = "products"   // scoped per catalogue
	ResourceCategories  Resource = "categories" // scoped per catalogue
	ResourceExports     Resource = "exports"    // counted per calendar month (UTC)
	ResourceStorage     Resource = "storage"    // measured in storage units
	ResourceTeamMembers Resource = "team_members"
)

// Unlimited indicates no limit for a resource (-1 chosen for SQL compatibility).
const Unlimited int64 = -1

// Feature represents a plan-specific capability that can be enabled per tier.
type Feature string

const (
	FeatureCustomDomain      Feature = "custom_domain"
	FeatureAdvancedAnalytics Feature = "advanced_analytics"
	FeatureWhiteLabel        Feature = "white_label"
	FeaturePrioritySupport   Feature = "priority_support"
	FeatureAPIAccess         Feature = "api_access"
	FeatureCustomBranding    Feature = "custom_branding"
	FeatureAdvancedExports   Feature = "advanced_exports"
	FeatureTeamCollaboration Feature = "team_collaboration"
	FeatureAdvancedSEO       Feature = "advanced_seo"
	FeatureCustomThemes      Feature = "custom_themes"
)

// BillingCycle represents the billing frequency of a subscription.
type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

// Valid reports whether c is a known billing cycle.
func (c BillingCycle) Valid() bool {
	return c == CycleMonthly || c == CycleYearly
}
