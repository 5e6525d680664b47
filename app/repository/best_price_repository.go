package repository

import (
	"gorm.io/gorm"

	"github.com/roamfox/roamfox/app/models"
)

// bestPriceRepository implements the BestPriceRepository interface
type bestPriceRepository struct {
	db *gorm.DB
}

// NewBestPriceRepository creates a new best price repository instance
func NewBestPriceRepository(db *gorm.DB) BestPriceRepository {
	return &bestPriceRepository{db: db}
}

// ReplaceAll swaps the full mark set inside one transaction. A comparison
// run is a completed, non-partial operation: readers either see the previous
// generation or the new one, never a mix.
func (r *bestPriceRepository) ReplaceAll(marks []models.BestPriceMark) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.BestPriceMark{}).Error; err != nil {
			return err
		}
		if len(marks) == 0 {
			return nil
		}
		return tx.CreateInBatches(marks, 200).Error
	})
}

func (r *bestPriceRepository) GetByGroupKey(key string) (*models.BestPriceMark, error) {
	var mark models.BestPriceMark
	if err := r.db.Where("group_key = ?", key).First(&mark).Error; err != nil {
		return nil, err
	}
	return &mark, nil
}

func (r *bestPriceRepository) GetAll() ([]models.BestPriceMark, error) {
	var marks []models.BestPriceMark
	err := r.db.Find(&marks).Error
	return marks, err
}

func (r *bestPriceRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.BestPriceMark{}).Count(&count).Error
	return count, err
}
