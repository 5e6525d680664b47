package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func TestComputeSellPrice(t *testing.T) {
	tests := []struct {
		wholesale string
		margin    string
		currency  string
		want      string
	}{
		{wholesale: "10.00", margin: "15", currency: "USD", want: "11.5"},
		{wholesale: "4.99", margin: "20", currency: "USD", want: "5.99"},
		{wholesale: "10.005", margin: "0", currency: "USD", want: "10.01"},
		{wholesale: "1000", margin: "15", currency: "JPY", want: "1150"},
		{wholesale: "999", margin: "10", currency: "JPY", want: "1099"},
		{wholesale: "1.2345", margin: "10", currency: "BHD", want: "1.358"},
		{wholesale: "10.00", margin: "0", currency: "USD", want: "10"},
	}

	for _, tt := range tests {
		got := ComputeSellPrice(dec(tt.wholesale), dec(tt.margin), tt.currency)
		if got.String() != tt.want {
			t.Fatalf("ComputeSellPrice(%s, %s%%, %s) = %s, want %s",
				tt.wholesale, tt.margin, tt.currency, got, tt.want)
		}
	}
}

func TestEffectiveMarginPercent(t *testing.T) {
	if got := EffectiveMarginPercent(dec("10"), dec("11.50")); !got.Equal(dec("15")) {
		t.Fatalf("expected 15%%, got %s", got)
	}
	if got := EffectiveMarginPercent(dec("0"), dec("5")); !got.IsZero() {
		t.Fatalf("zero wholesale must yield zero margin, got %s", got)
	}
}

func TestValidateOverride(t *testing.T) {
	// 11.00 on a 10.00 cost is a 10% margin, below a 15% floor.
	err := ValidateOverride(dec("10.00"), dec("11.00"), dec("15"))
	var validation *apperr.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	if err := ValidateOverride(dec("10.00"), dec("11.50"), dec("15")); err != nil {
		t.Fatalf("override at the floor must be accepted: %v", err)
	}
	if err := ValidateOverride(dec("10.00"), dec("0"), dec("0")); err == nil {
		t.Fatal("non-positive override must be rejected")
	}
}

// fakeProviders serves fixed provider rows.
type fakeProviders struct {
	byID map[uint]*models.Provider
}

func (f *fakeProviders) Create(p *models.Provider) error { return nil }
func (f *fakeProviders) GetByID(id uint) (*models.Provider, error) {
	if p, ok := f.byID[id]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeProviders) GetBySlug(slug string) (*models.Provider, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeProviders) GetAll() ([]models.Provider, error)               { return nil, nil }
func (f *fakeProviders) GetEnabled() ([]models.Provider, error)           { return nil, nil }
func (f *fakeProviders) Update(p *models.Provider) error                  { return nil }
func (f *fakeProviders) UpdateLastSyncAt(id uint, ts time.Time) error     { return nil }
func (f *fakeProviders) Count() (int64, error)                            { return 0, nil }

// fakePackages records price updates.
type fakePackages struct {
	byID     map[uint]*models.ESIMPackage
	active   []models.ESIMPackage
	updates  map[uint]decimal.Decimal
	override map[uint]bool
}

func newFakePackages() *fakePackages {
	return &fakePackages{
		byID:     make(map[uint]*models.ESIMPackage),
		updates:  make(map[uint]decimal.Decimal),
		override: make(map[uint]bool),
	}
}

func (f *fakePackages) Upsert(pkg *models.ESIMPackage) error { return nil }
func (f *fakePackages) GetByID(id uint) (*models.ESIMPackage, error) {
	if pkg, ok := f.byID[id]; ok {
		return pkg, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (f *fakePackages) GetByProviderNativeID(providerID uint, nativeID string) (*models.ESIMPackage, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakePackages) ListActiveByProvider(providerID uint) ([]models.ESIMPackage, error) {
	return f.active, nil
}
func (f *fakePackages) ListActiveWithProviders() ([]models.ESIMPackage, error) { return nil, nil }
func (f *fakePackages) DeactivateUnseen(providerID uint, syncStartedAt time.Time) (int64, error) {
	return 0, nil
}
func (f *fakePackages) PriceRangeForCurrency(currency string) (decimal.Decimal, decimal.Decimal, int64, error) {
	return decimal.Zero, decimal.Zero, 0, nil
}
func (f *fakePackages) UpdateSellPrice(id uint, price decimal.Decimal, overridden bool) error {
	f.updates[id] = price
	f.override[id] = overridden
	return nil
}
func (f *fakePackages) Count() (int64, error)       { return 0, nil }
func (f *fakePackages) CountActive() (int64, error) { return 0, nil }

func TestApplyOverride(t *testing.T) {
	providers := &fakeProviders{byID: map[uint]*models.Provider{
		1: {ID: 1, Slug: "esimaccess", MinMarginPercent: dec("10")},
	}}
	packages := newFakePackages()
	packages.byID[42] = &models.ESIMPackage{
		ID: 42, ProviderID: 1, Currency: "USD",
		WholesaleCost: dec("10.00"), SellPrice: dec("11.50"),
	}

	svc := NewService(providers, packages)

	// Below the floor: rejected, nothing written.
	err := svc.ApplyOverride(context.Background(), 42, dec("10.50"))
	var validation *apperr.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Empty(t, packages.updates)

	// At a valid margin: accepted and flagged as overridden.
	require.NoError(t, svc.ApplyOverride(context.Background(), 42, dec("12.00")))
	assert.True(t, packages.updates[42].Equal(dec("12.00")))
	assert.True(t, packages.override[42])

	// Unknown package.
	err = svc.ApplyOverride(context.Background(), 9999, dec("12.00"))
	var notFound *apperr.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestRecomputeProviderPrices(t *testing.T) {
	providers := &fakeProviders{byID: map[uint]*models.Provider{
		1: {ID: 1, Slug: "esimaccess", PricingMarginPercent: dec("20")},
	}}
	packages := newFakePackages()
	packages.active = []models.ESIMPackage{
		// Stale price from an old margin: must be recomputed.
		{ID: 1, ProviderID: 1, Currency: "USD", WholesaleCost: dec("10.00"), SellPrice: dec("11.50")},
		// Already correct: must be left alone.
		{ID: 2, ProviderID: 1, Currency: "USD", WholesaleCost: dec("5.00"), SellPrice: dec("6.00")},
		// Admin override: never touched by recompute.
		{ID: 3, ProviderID: 1, Currency: "USD", WholesaleCost: dec("8.00"), SellPrice: dec("20.00"), PriceOverridden: true},
	}

	svc := NewService(providers, packages)
	updated, err := svc.RecomputeProviderPrices(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	assert.True(t, packages.updates[1].Equal(dec("12.00")))
	_, touched := packages.updates[3]
	assert.False(t, touched)

	// Idempotent: a second pass changes nothing.
	packages.updates = make(map[uint]decimal.Decimal)
	packages.active[0].SellPrice = dec("12.00")
	updated, err = svc.RecomputeProviderPrices(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, updated)
	assert.Empty(t, packages.updates)
}
