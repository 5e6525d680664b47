package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetProviderRepository returns the provider repository instance
func (f *Factory) GetProviderRepository() ProviderRepository {
	return f.GetRepositories().Provider
}

// GetPackageRepository returns the package repository instance
func (f *Factory) GetPackageRepository() PackageRepository {
	return f.GetRepositories().Package
}

// GetBestPriceRepository returns the best price repository instance
func (f *Factory) GetBestPriceRepository() BestPriceRepository {
	return f.GetRepositories().BestPrice
}

// GetBracketRepository returns the bracket repository instance
func (f *Factory) GetBracketRepository() BracketRepository {
	return f.GetRepositories().Bracket
}

// GetDestinationRepository returns the destination repository instance
func (f *Factory) GetDestinationRepository() DestinationRepository {
	return f.GetRepositories().Destination
}

// Global factory instance
var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory
func InitializeFactory(db *gorm.DB) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db)
	})
}

// GetGlobalFactory returns the global repository factory instance
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("Repository factory not initialized. Call InitializeFactory first.")
	}
	return globalFactory
}

// GetGlobalRepositories returns the global repositories instance
func GetGlobalRepositories() *Repositories {
	return GetGlobalFactory().GetRepositories()
}
