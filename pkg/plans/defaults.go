package plans

// defaultPlans returns the built-in plan table. Deployments that need
// different pricing or limits load a YAMLSource instead; the shape and tier
// set must stay identical.
func defaultPlans() map[Tier]Plan {
	return map[Tier]Plan{
		TierFree: {
			Tier:        TierFree,
			Name:        "Free",
			Description: "Single catalogue to try things out",
			Limits: map[Resource]int64{
				ResourceCatalogues:  1,
				ResourceProducts:    10,
				ResourceCategories:  5,
				ResourceExports:     3,
				ResourceStorage:     1,
				ResourceTeamMembers: 1,
			},
			Features: []Feature{},
		},
		TierStandard: {
			Tier:        TierStandard,
			Name:        "Standard",
			Description: "For small teams publishing a handful of catalogues",
			Limits: map[Resource]int64{
				ResourceCatalogues:  3,
				ResourceProducts:    100,
				ResourceCategories:  20,
				ResourceExports:     20,
				ResourceStorage:     10,
				ResourceTeamMembers: 3,
			},
			Features: []Feature{
				FeatureCustomBranding,
				FeatureAdvancedExports,
			},
			Prices: map[BillingCycle]Money{
				CycleMonthly: {Amount: 1900, Currency: "USD"},
				CycleYearly:  {Amount: 19000, Currency: "USD"},
			},
			TrialDays: 14,
		},
		TierProfessional: {
			Tier:        TierProfessional,
			Name:        "Professional",
			Description: "Full toolkit for growing catalogue publishers",
			Limits: map[Resource]int64{
				ResourceCatalogues:  10,
				ResourceProducts:    500,
				ResourceCategories:  50,
				ResourceExports:     100,
				ResourceStorage:     50,
				ResourceTeamMembers: 10,
			},
			Features: []Feature{
				FeatureCustomBranding,
				FeatureAdvancedExports,
				FeatureCustomDomain,
				FeatureAdvancedAnalytics,
				FeatureAPIAccess,
				FeatureTeamCollaboration,
				FeatureAdvancedSEO,
				FeatureCustomThemes,
			},
			Prices: map[BillingCycle]Money{
				CycleMonthly: {Amount: 4900, Currency: "USD"},
				CycleYearly:  {Amount: 49000, Currency: "USD"},
			},
			TrialDays: 14,
		},
		TierBusiness: {
			Tier:        TierBusiness,
			Name:        "Business",
			Description: "Unlimited catalogues with white-label publishing",
			Limits: map[Resource]int64{
				ResourceCatalogues:  Unlimited,
				ResourceProducts:    Unlimited,
				ResourceCategories:  Unlimited,
				ResourceExports:     Unlimited,
				ResourceStorage:     500,
				ResourceTeamMembers: Unlimited,
			},
			Features: []Feature{
				FeatureCustomBranding,
				FeatureAdvancedExports,
				FeatureCustomDomain,
				FeatureAdvancedAnalytics,
				FeatureAPIAccess,
				FeatureTeamCollaboration,
				FeatureAdvancedSEO,
				FeatureCustomThemes,
				FeatureWhiteLabel,
				FeaturePrioritySupport,
			},
			Prices: map[BillingCycle]Money{
				CycleMonthly: {Amount: 9900, Currency: "USD"},
				CycleYearly:  {Amount: 99000, Currency: "USD"},
			},
		},
	}
}
