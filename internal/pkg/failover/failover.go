package failover

import (
	"context"
	"sort"
	"time"

	"github.com/roamfox/roamfox/app/models"
	"github.com/roamfox/roamfox/app/repository"
	"github.com/roamfox/roamfox/internal/pkg/apperr"
	"github.com/roamfox/roamfox/internal/pkg/pricing"
)

// Selector determines the provider order tried at fulfillment time when the
// first-choice provider fails to issue an eSIM.
type Selector struct {
	providers repository.ProviderRepository
	packages  repository.PackageRepository
}

// NewSelector creates a failover selector from injected repositories.
func NewSelector(providers repository.ProviderRepository, packages repository.PackageRepository) *Selector {
	return &Selector{providers: providers, packages: packages}
}

// SelectProviderOrder returns the ordered provider candidates able to
// fulfill an offer in the given equivalence group.
//
// Candidates are enabled providers carrying an active package in the group
// whose effective margin meets the provider's floor, sorted by failover
// priority. Stale providers (last sync older than twice their sync
// interval) are demoted to the end rather than excluded, so a
// degraded-but-available provider remains a last resort. When no ranked
// candidate qualifies, providers flagged preferred are returned regardless
// of staleness before giving up with a ServiceUnavailableError.
func (s *Selector) SelectProviderOrder(ctx context.Context, groupKey string) ([]models.Provider, error) {
	_ = ctx
	enabled, err := s.providers.GetEnabled()
	if err != nil {
		return nil, err
	}

	pkgs, err := s.packages.ListActiveWithProviders()
	if err != nil {
		return nil, err
	}

	// One qualifying package per provider is enough to be a candidate.
	inGroup := make(map[uint]models.ESIMPackage)
	for _, pkg := range pkgs {
		if pkg.EquivalenceKey() != groupKey {
			continue
		}
		if _, seen := inGroup[pkg.ProviderID]; !seen {
			inGroup[pkg.ProviderID] = pkg
		}
	}

	now := time.Now()
	var fresh, stale []models.Provider
	for _, provider := range enabled {
		pkg, ok := inGroup[provider.ID]
		if !ok {
			continue
		}
		margin := pricing.EffectiveMarginPercent(pkg.WholesaleCost, pkg.SellPrice)
		if margin.LessThan(provider.MinMarginPercent) {
			continue
		}
		if provider.IsStale(now) {
			stale = append(stale, provider)
		} else {
			fresh = append(fresh, provider)
		}
	}

	byPriority := func(providers []models.Provider) {
		sort.SliceStable(providers, func(i, j int) bool {
			return providers[i].FailoverPriority < providers[j].FailoverPriority
		})
	}
	byPriority(fresh)
	byPriority(stale)

	order := append(fresh, stale...)
	if len(order) > 0 {
		return order, nil
	}

	// Fallback of last resort: preferred providers, staleness ignored.
	var preferred []models.Provider
	for _, provider := range enabled {
		if provider.IsPreferred {
			preferred = append(preferred, provider)
		}
	}
	byPriority(preferred)
	if len(preferred) > 0 {
		return preferred, nil
	}

	return nil, &apperr.ServiceUnavailableError{Reason: "no eligible provider for offer group " + groupKey}
}
