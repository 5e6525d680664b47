package repository

import (
	"gorm.io/gorm"

	"github.com/roamfox/roamfox/app/models"
)

// destinationRepository implements the DestinationRepository interface
type destinationRepository struct {
	db *gorm.DB
}

// NewDestinationRepository creates a new destination repository instance
func NewDestinationRepository(db *gorm.DB) DestinationRepository {
	return &destinationRepository{db: db}
}

func (r *destinationRepository) GetByCountryCode(code string) (*models.Destination, error) {
	var dest models.Destination
	if err := r.db.Where("country_code = ?", code).First(&dest).Error; err != nil {
		return nil, err
	}
	return &dest, nil
}

func (r *destinationRepository) GetRegionBySlug(slug string) (*models.Region, error) {
	var region models.Region
	if err := r.db.Where("slug = ?", slug).First(&region).Error; err != nil {
		return nil, err
	}
	return &region, nil
}

func (r *destinationRepository) ListActive() ([]models.Destination, error) {
	var dests []models.Destination
	err := r.db.Where("active = ?", true).Order("name ASC").Find(&dests).Error
	return dests, err
}

func (r *destinationRepository) Create(dest *models.Destination) error {
	return r.db.Create(dest).Error
}
