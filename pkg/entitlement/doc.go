// Package entitlement answers admission-control questions for account
// resources gated by plan limits: "can this account create one more
// catalogue, product, category, export, or team seat?".
//
// The service composes three injected pieces:
//
//   - a plans.Catalog holding per-tier limits and feature flags
//   - a CounterRegistry mapping each resource to a live usage counter
//   - a TierResolver mapping an account to its effective plan tier
//
// Basic usage:
//
//	counters := entitlement.NewRegistry()
//	counters.Register(plans.ResourceCatalogues, catalogueCounter)
//	counters.Register(plans.ResourceExports, func(ctx context.Context, accountID, _ uuid.UUID) (int64, error) {
//	    start, end := entitlement.MonthWindow(time.Now())
//	    return exportRepo.CountBetween(ctx, accountID, start, end)
//	})
//
//	svc := entitlement.NewService(plans.Default(), counters, tierResolver,
//	    entitlement.WithOverridePolicy(entitlement.NewStaticPolicy(adminAccountID)))
//
//	if err := svc.CanCreate(ctx, accountID, plans.ResourceProducts, catalogueID); err != nil {
//	    // errors.Is(err, entitlement.ErrLimitExceeded) when the quota is full
//	}
//
// Checks are advisory at check-time only. Any code path that creates a
// scarce resource must re-run the count and the insert inside one database
// transaction; see the billing service's invitation flow for the pattern.
package entitlement
