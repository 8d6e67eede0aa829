// Package plans holds the static plan catalog: the ordered subscription tiers
// and the numeric limits and feature flags each tier grants.
//
// The catalog is pure data plus lookup functions. Tier is a closed, totally
// ordered enumeration (free < standard < professional < business), so
// Catalog.Get is total and has no failure mode. Every entitlement decision in
// the rest of the codebase is expressed against this package; no limit
// constants are duplicated elsewhere.
//
// Basic usage:
//
//	catalog := plans.Default()
//	plan := catalog.Get(plans.TierStandard)
//	if plan.Limit(plans.ResourceCatalogues) == plans.Unlimited { ... }
//	if plan.HasFeature(plans.FeatureCustomDomain) { ... }
//
// Deployments that need different pricing load the catalog from YAML instead:
//
//	catalog, err := plans.NewCatalog(ctx, plans.NewYAMLSource("plans.yml"))
package plans
