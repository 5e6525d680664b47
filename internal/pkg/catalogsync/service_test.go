package catalogsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/roamfox/roamfox/app/models"
	"github.com/roamfox/roamfox/internal/pkg/apperr"
	"github.com/roamfox/roamfox/internal/pkg/normalizer"
)

type memProviders struct {
	byID map[uint]*models.Provider
}

func (m *memProviders) Create(provider *models.Provider) error { return nil }
func (m *memProviders) GetByID(id uint) (*models.Provider, error) {
	provider, ok := m.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *provider
	return &copied, nil
}
func (m *memProviders) GetBySlug(slug string) (*models.Provider, error) {
	for _, provider := range m.byID {
		if provider.Slug == slug {
			copied := *provider
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}
func (m *memProviders) GetAll() ([]models.Provider, error) { return nil, nil }
func (m *memProviders) GetEnabled() ([]models.Provider, error) {
	var out []models.Provider
	for _, provider := range m.byID {
		if provider.Enabled {
			out = append(out, *provider)
		}
	}
	return out, nil
}
func (m *memProviders) Update(provider *models.Provider) error { return nil }
func (m *memProviders) UpdateLastSyncAt(id uint, t time.Time) error {
	provider, ok := m.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	provider.LastSyncAt = &t
	return nil
}
func (m *memProviders) Count() (int64, error) { return int64(len(m.byID)), nil }

type memPackages struct {
	rows            map[string]*models.ESIMPackage
	nextID          uint
	deactivateCalls int
}

func newMemPackages() *memPackages {
	return &memPackages{rows: make(map[string]*models.ESIMPackage), nextID: 1}
}

func pkgKey(providerID uint, nativeID string) string {
	return fmt.Sprintf("%d|%s", providerID, nativeID)
}

func (m *memPackages) Upsert(pkg *models.ESIMPackage) error {
	key := pkgKey(pkg.ProviderID, pkg.ProviderNativeID)
	if existing, ok := m.rows[key]; ok {
		pkg.ID = existing.ID
	} else {
		pkg.ID = m.nextID
		m.nextID++
	}
	copied := *pkg
	m.rows[key] = &copied
	return nil
}
func (m *memPackages) GetByID(id uint) (*models.ESIMPackage, error) {
	for _, pkg := range m.rows {
		if pkg.ID == id {
			copied := *pkg
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}
func (m *memPackages) GetByProviderNativeID(providerID uint, nativeID string) (*models.ESIMPackage, error) {
	pkg, ok := m.rows[pkgKey(providerID, nativeID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *pkg
	return &copied, nil
}
func (m *memPackages) ListActiveByProvider(providerID uint) ([]models.ESIMPackage, error) {
	var out []models.ESIMPackage
	for _, pkg := range m.rows {
		if pkg.ProviderID == providerID && pkg.Active {
			out = append(out, *pkg)
		}
	}
	return out, nil
}
func (m *memPackages) ListActiveWithProviders() ([]models.ESIMPackage, error) { return nil, nil }
func (m *memPackages) DeactivateUnseen(providerID uint, syncStartedAt time.Time) (int64, error) {
	m.deactivateCalls++
	var affected int64
	for _, pkg := range m.rows {
		if pkg.ProviderID == providerID && pkg.Active && pkg.LastSeenAt.Before(syncStartedAt) {
			pkg.Active = false
			affected++
		}
	}
	return affected, nil
}
func (m *memPackages) PriceRangeForCurrency(currency string) (decimal.Decimal, decimal.Decimal, int64, error) {
	return decimal.Zero, decimal.Zero, 0, nil
}
func (m *memPackages) UpdateSellPrice(id uint, price decimal.Decimal, overridden bool) error {
	return nil
}
func (m *memPackages) Count() (int64, error)       { return int64(len(m.rows)), nil }
func (m *memPackages) CountActive() (int64, error) { return 0, nil }

type memDestinations struct {
	byCode map[string]*models.Destination
}

func (m *memDestinations) GetByCountryCode(code string) (*models.Destination, error) {
	dest, ok := m.byCode[code]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return dest, nil
}
func (m *memDestinations) GetRegionBySlug(slug string) (*models.Region, error) {
	return nil, gorm.ErrRecordNotFound
}
func (m *memDestinations) ListActive() ([]models.Destination, error) { return nil, nil }
func (m *memDestinations) Create(dest *models.Destination) error     { return nil }

func eaOffer(code, data, price, country string) normalizer.RawOffer {
	payload, _ := json.Marshal(map[string]any{
		"packageCode":  code,
		"name":         code,
		"dataAmount":   data,
		"validityDays": 7,
		"price":        price,
		"currency":     "USD",
		"countryCode":  country,
	})
	return normalizer.RawOffer{ProviderSlug: "esimaccess", NativeID: code, Payload: payload}
}

func newSyncFixture(client PageFetcher) (*Service, *memProviders, *memPackages) {
	providers := &memProviders{byID: map[uint]*models.Provider{
		1: {
			ID:                   1,
			Name:                 "eSIMAccess",
			Slug:                 "esimaccess",
			Enabled:              true,
			PricingMarginPercent: decimal.NewFromInt(25),
			SyncIntervalMinutes:  60,
		},
		2: {
			ID:      2,
			Name:    "Airhub",
			Slug:    "airhub",
			Enabled: false,
		},
	}}
	packages := newMemPackages()
	destinations := &memDestinations{byCode: map[string]*models.Destination{
		"JP": {ID: 7, Name: "Japan", CountryCode: "JP", Active: true},
	}}
	service := NewService(providers, packages, normalizer.New(destinations), newTestFetcher("esimaccess", client, allowAll{}))
	return service, providers, packages
}

func TestSyncProviderSuccess(t *testing.T) {
	client := &scriptedClient{pages: []scriptedPage{
		{offers: []normalizer.RawOffer{
			eaOffer("EA-JP-1", "1GB", "4.00", "JP"),
			eaOffer("EA-JP-5", "5GB", "12.00", "JP"),
		}, nextToken: "p2"},
		{offers: []normalizer.RawOffer{
			eaOffer("EA-JP-10", "10GB", "20.00", "JP"),
		}},
	}}
	service, providers, packages := newSyncFixture(client)

	// A package from a previous run that the upstream no longer offers.
	stale := &models.ESIMPackage{
		ProviderID:       1,
		ProviderNativeID: "EA-GONE",
		Title:            "Gone",
		Currency:         "USD",
		Active:           true,
		LastSeenAt:       time.Now().Add(-48 * time.Hour),
	}
	if err := packages.Upsert(stale); err != nil {
		t.Fatal(err)
	}

	result, err := service.SyncProvider(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Pages != 2 || result.OffersSeen != 3 || result.Upserted != 3 || result.Skipped != 0 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if result.Deactivated != 1 {
		t.Fatalf("expected 1 deactivated, got %d", result.Deactivated)
	}

	stored, err := packages.GetByProviderNativeID(1, "EA-JP-1")
	if err != nil {
		t.Fatalf("package not stored: %v", err)
	}
	if !stored.SellPrice.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected sell price 5.00 at 25%% margin, got %s", stored.SellPrice)
	}
	if stored.DestinationID == nil || *stored.DestinationID != 7 {
		t.Fatalf("expected destination 7, got %v", stored.DestinationID)
	}

	if providers.byID[1].LastSyncAt == nil {
		t.Fatal("expected LastSyncAt to advance after a successful sync")
	}
}

func TestSyncProviderAbortKeepsProgress(t *testing.T) {
	// Pages 1-3 land, page 4 dies with an auth error. Everything already
	// upserted stays, nothing is deactivated and LastSyncAt is untouched so
	// the next scheduler pass retries promptly.
	client := &scriptedClient{pages: []scriptedPage{
		{offers: []normalizer.RawOffer{eaOffer("EA-1", "1GB", "4.00", "JP")}, nextToken: "p2"},
		{offers: []normalizer.RawOffer{eaOffer("EA-2", "2GB", "6.00", "JP")}, nextToken: "p3"},
		{offers: []normalizer.RawOffer{eaOffer("EA-3", "3GB", "8.00", "JP")}, nextToken: "p4"},
		{err: &UpstreamStatusError{StatusCode: 401, Message: "bad key"}},
	}}
	service, providers, packages := newSyncFixture(client)

	result, err := service.SyncProvider(context.Background(), 1)
	var provErr *apperr.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if result == nil {
		t.Fatal("expected a partial result alongside the error")
	}
	if result.Pages != 3 || result.Upserted != 3 {
		t.Fatalf("expected progress from 3 pages, got %+v", result)
	}
	if result.Error == "" {
		t.Fatal("expected result.Error to carry the failure")
	}
	if packages.deactivateCalls != 0 {
		t.Fatal("aborted sync must not deactivate unseen packages")
	}
	if providers.byID[1].LastSyncAt != nil {
		t.Fatal("aborted sync must not advance LastSyncAt")
	}
	if _, err := packages.GetByProviderNativeID(1, "EA-3"); err != nil {
		t.Fatalf("upserted package from a delivered page is missing: %v", err)
	}
}

func TestSyncProviderSkipsMalformedOffers(t *testing.T) {
	bad := normalizer.RawOffer{
		ProviderSlug: "esimaccess",
		NativeID:     "EA-BAD",
		Payload:      json.RawMessage(`{"name":"no package code"}`),
	}
	client := &scriptedClient{pages: []scriptedPage{
		{offers: []normalizer.RawOffer{
			eaOffer("EA-OK", "1GB", "4.00", "JP"),
			bad,
		}},
	}}
	service, _, packages := newSyncFixture(client)

	result, err := service.SyncProvider(context.Background(), 1)
	if err != nil {
		t.Fatalf("a malformed offer must not abort the sync: %v", err)
	}
	if result.OffersSeen != 2 || result.Upserted != 1 || result.Skipped != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if _, err := packages.GetByProviderNativeID(1, "EA-OK"); err != nil {
		t.Fatalf("valid sibling offer is missing: %v", err)
	}
}

func TestSyncProviderPreservesPriceOverride(t *testing.T) {
	client := &scriptedClient{pages: []scriptedPage{
		{offers: []normalizer.RawOffer{eaOffer("EA-JP-1", "1GB", "4.00", "JP")}},
	}}
	service, _, packages := newSyncFixture(client)

	overridden := &models.ESIMPackage{
		ProviderID:       1,
		ProviderNativeID: "EA-JP-1",
		Title:            "Japan 1GB",
		Currency:         "USD",
		SellPrice:        decimal.RequireFromString("9.99"),
		PriceOverridden:  true,
		Active:           true,
		LastSeenAt:       time.Now().Add(-time.Hour),
	}
	if err := packages.Upsert(overridden); err != nil {
		t.Fatal(err)
	}

	if _, err := service.SyncProvider(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, err := packages.GetByProviderNativeID(1, "EA-JP-1")
	if err != nil {
		t.Fatal(err)
	}
	if !stored.SellPrice.Equal(decimal.RequireFromString("9.99")) {
		t.Fatalf("admin override lost: got %s", stored.SellPrice)
	}
	if !stored.PriceOverridden {
		t.Fatal("PriceOverridden flag lost")
	}
}

func TestSyncProviderRejectsUnknownAndDisabled(t *testing.T) {
	service, _, _ := newSyncFixture(&scriptedClient{})

	var notFound *apperr.NotFoundError
	if _, err := service.SyncProvider(context.Background(), 99); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	var validation *apperr.ValidationError
	if _, err := service.SyncProvider(context.Background(), 2); !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError for disabled provider, got %v", err)
	}
}

func TestSyncAllIsolatesFailures(t *testing.T) {
	client := &scriptedClient{pages: []scriptedPage{
		{offers: []normalizer.RawOffer{eaOffer("EA-1", "1GB", "4.00", "JP")}},
	}}
	service, providers, _ := newSyncFixture(client)
	// Second enabled provider with no registered client fails on its own.
	providers.byID[3] = &models.Provider{
		ID:                  3,
		Name:                "Simovia",
		Slug:                "simovia",
		Enabled:             true,
		SyncIntervalMinutes: 60,
	}

	results, err := service.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected one result per enabled provider, got %d", len(results))
	}

	bySlug := make(map[string]*SyncResult, len(results))
	for _, result := range results {
		bySlug[result.ProviderSlug] = result
	}
	if got := bySlug["esimaccess"]; got == nil || got.Error != "" || got.Upserted != 1 {
		t.Fatalf("expected clean esimaccess run, got %+v", got)
	}
	if got := bySlug["simovia"]; got == nil || got.Error == "" {
		t.Fatalf("expected simovia failure to be reported, got %+v", got)
	}
}
