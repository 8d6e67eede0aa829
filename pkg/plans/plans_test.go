package plans_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cataloghq/cataloghq/pkg/plans"
)

func TestTierOrdering(t *testing.T) {
	t.Parallel()

	assert.True(t, plans.TierBusiness.AtLeast(plans.TierFree))
	assert.True(t, plans.TierStandard.AtLeast(plans.TierStandard))
	assert.False(t, plans.TierFree.AtLeast(plans.TierStandard))
	assert.False(t, plans.TierProfessional.AtLeast(plans.TierBusiness))
}

func TestTierNext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tier plans.Tier
		next plans.Tier
	}{
		{plans.TierFree, plans.TierStandard},
		{plans.TierStandard, plans.TierProfessional},
		{plans.TierProfessional, plans.TierBusiness},
		{plans.TierBusiness, plans.TierBusiness}, // top tier maps to itself
	}

	for _, tt := range tests {
		assert.Equal(t, tt.next, tt.tier.Next(), "next of %s", tt.tier)
	}
}

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()

	catalog := plans.Default()

	for _, tier := range plans.Tiers() {
		plan := catalog.Get(tier)
		assert.Equal(t, tier, plan.Tier)
		assert.NotEmpty(t, plan.Name)
		// every plan must define every gated resource
		for _, res := range []plans.Resource{
			plans.ResourceCatalogues,
			plans.ResourceProducts,
			plans.ResourceCategories,
			plans.ResourceExports,
			plans.ResourceStorage,
			plans.ResourceTeamMembers,
		} {
			_, ok := plan.Limits[res]
			assert.True(t, ok, "plan %s missing limit for %s", tier, res)
		}
	}

	free := catalog.Get(plans.TierFree)
	assert.Empty(t, free.Prices)
	assert.False(t, free.HasFeature(plans.FeatureWhiteLabel))

	business := catalog.Get(plans.TierBusiness)
	assert.Equal(t, plans.Unlimited, business.Limit(plans.ResourceCatalogues))
	assert.True(t, business.HasFeature(plans.FeatureWhiteLabel))
}

func TestCatalogGetIsTotal(t *testing.T) {
	t.Parallel()

	catalog := plans.Default()

	// An impossible tier value still resolves to the free floor.
	plan := catalog.Get(plans.Tier("enterprise"))
	assert.Equal(t, plans.TierFree, plan.Tier)
}

func TestNewCatalogValidation(t *testing.T) {
	t.Parallel()

	t.Run("missing tier", func(t *testing.T) {
		t.Parallel()

		src := plans.NewStaticSource(map[plans.Tier]plans.Plan{
			plans.TierFree: {Tier: plans.TierFree, Name: "Free"},
		})
		_, err := plans.NewCatalog(context.Background(), src)
		require.ErrorIs(t, err, plans.ErrInvalidCatalog)
	})

	t.Run("tier mismatch", func(t *testing.T) {
		t.Parallel()

		broken := map[plans.Tier]plans.Plan{}
		for _, tier := range plans.Tiers() {
			broken[tier] = plans.Plan{Tier: plans.TierFree, Name: "oops"}
		}
		_, err := plans.NewCatalog(context.Background(), srcOf(broken))
		require.ErrorIs(t, err, plans.ErrInvalidCatalog)
	})

	t.Run("invalid limit", func(t *testing.T) {
		t.Parallel()

		table := map[plans.Tier]plans.Plan{}
		for _, tier := range plans.Tiers() {
			table[tier] = plans.Plan{Tier: tier, Name: string(tier)}
		}
		p := table[plans.TierFree]
		p.Limits = map[plans.Resource]int64{plans.ResourceCatalogues: -2}
		table[plans.TierFree] = p

		_, err := plans.NewCatalog(context.Background(), srcOf(table))
		require.ErrorIs(t, err, plans.ErrInvalidCatalog)
	})
}

func srcOf(m map[plans.Tier]plans.Plan) plans.Source {
	return plans.NewStaticSource(m)
}

func TestYAMLSource(t *testing.T) {
	t.Parallel()

	const doc = `
plans:
  free:
    tier: free
    name: Free
    limits:
      catalogues: 1
      products: 10
      categories: 5
      exports: 3
      storage: 1
      team_members: 1
  standard:
    tier: standard
    name: Standard
    limits:
      catalogues: 3
      products: 100
      categories: 20
      exports: 20
      storage: 10
      team_members: 3
    features: [custom_branding]
    prices:
      monthly: {amount: 1900, currency: USD}
  professional:
    tier: professional
    name: Professional
    limits:
      catalogues: 10
      products: 500
      categories: 50
      exports: 100
      storage: 50
      team_members: 10
  business:
    tier: business
    name: Business
    limits:
      catalogues: -1
      products: -1
      categories: -1
      exports: -1
      storage: 500
      team_members: -1
`

	path := filepath.Join(t.TempDir(), "plans.yml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	catalog, err := plans.NewCatalog(context.Background(), plans.NewYAMLSource(path))
	require.NoError(t, err)

	standard := catalog.Get(plans.TierStandard)
	assert.Equal(t, int64(3), standard.Limit(plans.ResourceCatalogues))
	assert.True(t, standard.HasFeature(plans.FeatureCustomBranding))

	price, ok := standard.Price(plans.CycleMonthly)
	require.True(t, ok)
	assert.Equal(t, int64(1900), price.Amount)

	_, ok = standard.Price(plans.CycleYearly)
	assert.False(t, ok)
}

func TestYAMLSourceMissingFile(t *testing.T) {
	t.Parallel()

	_, err := plans.NewYAMLSource("/does/not/exist.yml").Load(context.Background())
	require.ErrorIs(t, err, plans.ErrFailedToLoadPlans)
}
