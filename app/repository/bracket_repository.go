package repository

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/roamfox/roamfox/app/models"
)

// bracketRepository implements the BracketRepository interface
type bracketRepository struct {
	db *gorm.DB
}

// NewBracketRepository creates a new bracket repository instance
func NewBracketRepository(db *gorm.DB) BracketRepository {
	return &bracketRepository{db: db}
}

// ReplaceForCurrency deactivates the prior bracket generation for the
// currency and activates the new set in one transaction, so readers never
// observe a partial bracket set. Existing ProductIDs are updated in place,
// which keeps their store submission statuses.
func (r *bracketRepository) ReplaceForCurrency(currency string, brackets []models.PriceBracket) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PriceBracket{}).
			Where("currency = ? AND is_active = ?", currency, true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		for i := range brackets {
			b := &brackets[i]
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "product_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"currency", "step_size", "bucket_index",
					"min_price", "max_price", "is_active", "updated_at",
				}),
			}).Create(b).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *bracketRepository) ListActiveByCurrency(currency string) ([]models.PriceBracket, error) {
	var brackets []models.PriceBracket
	err := r.db.Where("currency = ? AND is_active = ?", currency, true).
		Order("bucket_index ASC").Find(&brackets).Error
	return brackets, err
}

func (r *bracketRepository) GetByProductID(productID string) (*models.PriceBracket, error) {
	var bracket models.PriceBracket
	if err := r.db.Where("product_id = ?", productID).First(&bracket).Error; err != nil {
		return nil, err
	}
	return &bracket, nil
}

func (r *bracketRepository) UpdateSubmissionStatus(productID, platform, status string) error {
	var column string
	switch platform {
	case "appstore":
		column = "app_store_status"
	case "playstore":
		column = "play_store_status"
	default:
		return fmt.Errorf("unknown platform %q", platform)
	}
	switch status {
	case models.BracketStatusPending, models.BracketStatusSuccess, models.BracketStatusError:
	default:
		return fmt.Errorf("unknown submission status %q", status)
	}
	return r.db.Model(&models.PriceBracket{}).
		Where("product_id = ?", productID).
		Update(column, status).Error
}
