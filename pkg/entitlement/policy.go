package entitlement

import (
	"github.com/google/uuid"

	"github.com/cataloghq/cataloghq/pkg/plans"
)

// OverridePolicy decides whether an account bypasses limit checks for a
// resource. The bypass is deliberate and visible: it is injected once at
// service construction instead of being scattered through call sites as
// account ID comparisons.
type OverridePolicy interface {
	Allows(accountID uuid.UUID, res plans.Resource) bool
}

// StaticPolicy is an OverridePolicy backed by a fixed allow-list of account
// IDs, optionally restricted to specific resources.
type StaticPolicy struct {
	accounts  map[uuid.UUID]struct{}
	resources map[plans.Resource]struct{} // nil means all resources
}

// NewStaticPolicy builds a policy allowing the given accounts to bypass
// limit checks for every resource.
func NewStaticPolicy(accountIDs ...uuid.UUID) *StaticPolicy {
	accounts := make(map[uuid.UUID]struct{}, len(accountIDs))
	for _, id := range accountIDs {
		accounts[id] = struct{}{}
	}
	return &StaticPolicy{accounts: accounts}
}

// ForResources restricts the policy to the given resources and returns the
// policy for chaining.
func (p *StaticPolicy) ForResources(resources ...plans.Resource) *StaticPolicy {
	p.resources = make(map[plans.Resource]struct{}, len(resources))
	for _, res := range resources {
		p.resources[res] = struct{}{}
	}
	return p
}

func (p *StaticPolicy) Allows(accountID uuid.UUID, res plans.Resource) bool {
	if _, ok := p.accounts[accountID]; !ok {
		return false
	}
	if p.resources == nil {
		return true
	}
	_, ok := p.resources[res]
	return ok
}
