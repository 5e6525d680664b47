package repository

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/roamfox/roamfox/app/models"
)

// ProviderRepository defines the interface for provider configuration access
type ProviderRepository interface {
	Create(provider *models.Provider) error
	GetByID(id uint) (*models.Provider, error)
	GetBySlug(slug string) (*models.Provider, error)
	GetAll() ([]models.Provider, error)
	GetEnabled() ([]models.Provider, error)
	Update(provider *models.Provider) error
	UpdateLastSyncAt(id uint, t time.Time) error
	Count() (int64, error)
}

// PackageRepository defines the interface for normalized package persistence
type PackageRepository interface {
	// Upsert creates or updates a package keyed by (ProviderID,
	// ProviderNativeID) in a single-row transaction.
	Upsert(pkg *models.ESIMPackage) error
	GetByID(id uint) (*models.ESIMPackage, error)
	GetByProviderNativeID(providerID uint, nativeID string) (*models.ESIMPackage, error)
	ListActiveByProvider(providerID uint) ([]models.ESIMPackage, error)
	// ListActiveWithProviders returns all active packages of enabled
	// providers with the Provider association preloaded.
	ListActiveWithProviders() ([]models.ESIMPackage, error)
	// DeactivateUnseen marks a provider's packages inactive when their
	// LastSeenAt predates the given sync start. Returns rows affected.
	DeactivateUnseen(providerID uint, syncStartedAt time.Time) (int64, error)
	// PriceRangeForCurrency returns min/max active sell price and the
	// number of active packages priced in the currency.
	PriceRangeForCurrency(currency string) (min, max decimal.Decimal, count int64, err error)
	UpdateSellPrice(id uint, price decimal.Decimal, overridden bool) error
	Count() (int64, error)
	CountActive() (int64, error)
}

// BestPriceRepository defines the interface for comparison-run results
type BestPriceRepository interface {
	// ReplaceAll swaps the whole mark set in one transaction so readers
	// never observe a partial comparison generation.
	ReplaceAll(marks []models.BestPriceMark) error
	GetByGroupKey(key string) (*models.BestPriceMark, error)
	GetAll() ([]models.BestPriceMark, error)
	Count() (int64, error)
}

// BracketRepository defines the interface for price bracket persistence
type BracketRepository interface {
	// ReplaceForCurrency deactivates the prior generation for the
	// currency and activates the new set in one transaction. Brackets
	// whose ProductID already exists keep their submission statuses.
	ReplaceForCurrency(currency string, brackets []models.PriceBracket) error
	ListActiveByCurrency(currency string) ([]models.PriceBracket, error)
	GetByProductID(productID string) (*models.PriceBracket, error)
	UpdateSubmissionStatus(productID, platform, status string) error
}

// DestinationRepository defines the interface for destination/region lookup
type DestinationRepository interface {
	GetByCountryCode(code string) (*models.Destination, error)
	GetRegionBySlug(slug string) (*models.Region, error)
	ListActive() ([]models.Destination, error)
	Create(dest *models.Destination) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	Provider    ProviderRepository
	Package     PackageRepository
	BestPrice   BestPriceRepository
	Bracket     BracketRepository
	Destination DestinationRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Provider:    NewProviderRepository(db),
		Package:     NewPackageRepository(db),
		BestPrice:   NewBestPriceRepository(db),
		Bracket:     NewBracketRepository(db),
		Destination: NewDestinationRepository(db),
	}
}
