package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/roamfox/roamfox/app/models"
)

// providerRepository implements the ProviderRepository interface
type providerRepository struct {
	db *gorm.DB
}

// NewProviderRepository creates a new provider repository instance
func NewProviderRepository(db *gorm.DB) ProviderRepository {
	return &providerRepository{db: db}
}

func (r *providerRepository) Create(provider *models.Provider) error {
	return r.db.Create(provider).Error
}

func (r *providerRepository) GetByID(id uint) (*models.Provider, error) {
	var provider models.Provider
	if err := r.db.First(&provider, id).Error; err != nil {
		return nil, err
	}
	return &provider, nil
}

func (r *providerRepository) GetBySlug(slug string) (*models.Provider, error) {
	var provider models.Provider
	if err := r.db.Where("slug = ?", slug).First(&provider).Error; err != nil {
		return nil, err
	}
	return &provider, nil
}

func (r *providerRepository) GetAll() ([]models.Provider, error) {
	var providers []models.Provider
	err := r.db.Order("failover_priority ASC").Find(&providers).Error
	return providers, err
}

func (r *providerRepository) GetEnabled() ([]models.Provider, error) {
	var providers []models.Provider
	err := r.db.Where("enabled = ?", true).Order("failover_priority ASC").Find(&providers).Error
	return providers, err
}

func (r *providerRepository) Update(provider *models.Provider) error {
	return r.db.Save(provider).Error
}

// UpdateLastSyncAt advances only the sync timestamp so a concurrent admin
// edit of other fields cannot be clobbered by the sync job.
func (r *providerRepository) UpdateLastSyncAt(id uint, t time.Time) error {
	return r.db.Model(&models.Provider{}).
		Where("id = ?", id).
		Update("last_sync_at", t).Error
}

func (r *providerRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Provider{}).Count(&count).Error
	return count, err
}
