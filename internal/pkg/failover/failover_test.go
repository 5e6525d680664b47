package failover

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/roamfox/roamfox/app/models"
	"github.com/roamfox/roamfox/internal/pkg/apperr"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakeProviders struct {
	providers []models.Provider
}

func (f *fakeProviders) Create(p *models.Provider) error           { return nil }
func (f *fakeProviders) GetByID(id uint) (*models.Provider, error) { return nil, gorm.ErrRecordNotFound }
func (f *fakeProviders) GetBySlug(slug string) (*models.Provider, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeProviders) GetAll() ([]models.Provider, error) { return f.providers, nil }
func (f *fakeProviders) GetEnabled() ([]models.Provider, error) {
	var enabled []models.Provider
	for _, p := range f.providers {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}
	return enabled, nil
}
func (f *fakeProviders) Update(p *models.Provider) error              { return nil }
func (f *fakeProviders) UpdateLastSyncAt(id uint, ts time.Time) error { return nil }
func (f *fakeProviders) Count() (int64, error)                        { return int64(len(f.providers)), nil }

type fakePackages struct {
	pkgs []models.ESIMPackage
}

func (f *fakePackages) Upsert(pkg *models.ESIMPackage) error { return nil }
func (f *fakePackages) GetByID(id uint) (*models.ESIMPackage, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakePackages) GetByProviderNativeID(providerID uint, nativeID string) (*models.ESIMPackage, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakePackages) ListActiveByProvider(providerID uint) ([]models.ESIMPackage, error) {
	return nil, nil
}
func (f *fakePackages) ListActiveWithProviders() ([]models.ESIMPackage, error) { return f.pkgs, nil }
func (f *fakePackages) DeactivateUnseen(providerID uint, syncStartedAt time.Time) (int64, error) {
	return 0, nil
}
func (f *fakePackages) PriceRangeForCurrency(currency string) (decimal.Decimal, decimal.Decimal, int64, error) {
	return decimal.Zero, decimal.Zero, 0, nil
}
func (f *fakePackages) UpdateSellPrice(id uint, price decimal.Decimal, overridden bool) error {
	return nil
}
func (f *fakePackages) Count() (int64, error)       { return 0, nil }
func (f *fakePackages) CountActive() (int64, error) { return 0, nil }

func groupPackage(providerID uint, destID uint) models.ESIMPackage {
	return models.ESIMPackage{
		ProviderID:      providerID,
		DestinationID:   &destID,
		DataAmountBytes: 1 << 30,
		ValidityDays:    7,
		WholesaleCost:   dec("10.00"),
		SellPrice:       dec("12.00"),
		Active:          true,
	}
}

func TestSelectProviderOrderFreshBeforeStaleNeverDisabled(t *testing.T) {
	now := time.Now()
	fresh := now.Add(-time.Hour)
	stale := now.Add(-48 * time.Hour)

	providers := &fakeProviders{providers: []models.Provider{
		{ID: 1, Slug: "a", Enabled: true, FailoverPriority: 1, SyncIntervalMinutes: 360, LastSyncAt: &fresh},
		{ID: 2, Slug: "b", Enabled: true, FailoverPriority: 2, SyncIntervalMinutes: 360, LastSyncAt: &stale},
		{ID: 3, Slug: "c", Enabled: false, FailoverPriority: 1, SyncIntervalMinutes: 360, LastSyncAt: &fresh},
	}}
	packages := &fakePackages{pkgs: []models.ESIMPackage{
		groupPackage(1, 7), groupPackage(2, 7), groupPackage(3, 7),
	}}

	selector := NewSelector(providers, packages)
	order, err := selector.SelectProviderOrder(context.Background(), packages.pkgs[0].EquivalenceKey())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var slugs []string
	for _, p := range order {
		slugs = append(slugs, p.Slug)
	}
	if len(slugs) != 2 || slugs[0] != "a" || slugs[1] != "b" {
		t.Fatalf("expected [a b], got %v", slugs)
	}
}

func TestSelectProviderOrderStaleDemotedNotDropped(t *testing.T) {
	now := time.Now()
	fresh := now.Add(-time.Hour)
	stale := now.Add(-48 * time.Hour)

	// The stale provider outranks the fresh one, but staleness demotes it.
	providers := &fakeProviders{providers: []models.Provider{
		{ID: 1, Slug: "ranked-stale", Enabled: true, FailoverPriority: 1, SyncIntervalMinutes: 360, LastSyncAt: &stale},
		{ID: 2, Slug: "ranked-fresh", Enabled: true, FailoverPriority: 5, SyncIntervalMinutes: 360, LastSyncAt: &fresh},
	}}
	packages := &fakePackages{pkgs: []models.ESIMPackage{
		groupPackage(1, 7), groupPackage(2, 7),
	}}

	selector := NewSelector(providers, packages)
	order, err := selector.SelectProviderOrder(context.Background(), packages.pkgs[0].EquivalenceKey())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order[0].Slug != "ranked-fresh" || order[1].Slug != "ranked-stale" {
		t.Fatalf("expected stale provider demoted to the end, got %v", []string{order[0].Slug, order[1].Slug})
	}
}

func TestSelectProviderOrderMarginFloorFiltersCandidate(t *testing.T) {
	now := time.Now()
	fresh := now.Add(-time.Hour)

	providers := &fakeProviders{providers: []models.Provider{
		{ID: 1, Slug: "thin", Enabled: true, FailoverPriority: 1, MinMarginPercent: dec("30"), SyncIntervalMinutes: 360, LastSyncAt: &fresh},
		{ID: 2, Slug: "healthy", Enabled: true, FailoverPriority: 2, MinMarginPercent: dec("10"), SyncIntervalMinutes: 360, LastSyncAt: &fresh},
	}}
	// Both sell at a 20% effective margin; only "healthy"'s floor accepts it.
	packages := &fakePackages{pkgs: []models.ESIMPackage{
		groupPackage(1, 7), groupPackage(2, 7),
	}}

	selector := NewSelector(providers, packages)
	order, err := selector.SelectProviderOrder(context.Background(), packages.pkgs[0].EquivalenceKey())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 1 || order[0].Slug != "healthy" {
		t.Fatalf("expected only the provider meeting its floor, got %d candidates", len(order))
	}
}

func TestSelectProviderOrderPreferredFallback(t *testing.T) {
	// No provider carries the group; the preferred provider is the last
	// resort regardless of staleness.
	providers := &fakeProviders{providers: []models.Provider{
		{ID: 1, Slug: "primary", Enabled: true, FailoverPriority: 1, SyncIntervalMinutes: 360},
		{ID: 2, Slug: "fallback", Enabled: true, IsPreferred: true, FailoverPriority: 9, SyncIntervalMinutes: 360},
	}}
	packages := &fakePackages{}

	selector := NewSelector(providers, packages)
	order, err := selector.SelectProviderOrder(context.Background(), "d7|1073741824|7d|0v|0s")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 1 || order[0].Slug != "fallback" {
		t.Fatalf("expected preferred fallback, got %v", order)
	}
}

func TestSelectProviderOrderNoProviderAvailable(t *testing.T) {
	providers := &fakeProviders{providers: []models.Provider{
		{ID: 1, Slug: "only", Enabled: false, IsPreferred: true},
	}}
	selector := NewSelector(providers, &fakePackages{})

	_, err := selector.SelectProviderOrder(context.Background(), "d7|1073741824|7d|0v|0s")
	var unavailable *apperr.ServiceUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ServiceUnavailableError, got %v", err)
	}
}
