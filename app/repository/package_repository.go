package repository

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/roamfox/roamfox/app/models"
)

// packageRepository implements the PackageRepository interface
type packageRepository struct {
	db *gorm.DB
}

// NewPackageRepository creates a new package repository instance
func NewPackageRepository(db *gorm.DB) PackageRepository {
	return &packageRepository{db: db}
}

// Upsert creates or updates a package keyed by (provider_id,
// provider_native_id) in a single statement, so concurrent provider syncs
// never need cross-provider locking.
func (r *packageRepository) Upsert(pkg *models.ESIMPackage) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider_id"}, {Name: "provider_native_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"destination_id", "region_id", "title", "data_amount_bytes",
			"is_unlimited", "validity_days", "wholesale_cost", "sell_price",
			"currency", "voice_minutes", "sms_count", "active",
			"last_seen_at", "updated_at",
		}),
	}).Create(pkg).Error
}

func (r *packageRepository) GetByID(id uint) (*models.ESIMPackage, error) {
	var pkg models.ESIMPackage
	if err := r.db.Preload("Provider").First(&pkg, id).Error; err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (r *packageRepository) GetByProviderNativeID(providerID uint, nativeID string) (*models.ESIMPackage, error) {
	var pkg models.ESIMPackage
	err := r.db.Where("provider_id = ? AND provider_native_id = ?", providerID, nativeID).
		First(&pkg).Error
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (r *packageRepository) ListActiveByProvider(providerID uint) ([]models.ESIMPackage, error) {
	var pkgs []models.ESIMPackage
	err := r.db.Where("provider_id = ? AND active = ?", providerID, true).Find(&pkgs).Error
	return pkgs, err
}

func (r *packageRepository) ListActiveWithProviders() ([]models.ESIMPackage, error) {
	var pkgs []models.ESIMPackage
	err := r.db.Preload("Provider").
		Joins("JOIN providers ON providers.id = esim_packages.provider_id").
		Where("esim_packages.active = ? AND providers.enabled = ?", true, true).
		Find(&pkgs).Error
	return pkgs, err
}

func (r *packageRepository) DeactivateUnseen(providerID uint, syncStartedAt time.Time) (int64, error) {
	res := r.db.Model(&models.ESIMPackage{}).
		Where("provider_id = ? AND active = ? AND last_seen_at < ?", providerID, true, syncStartedAt).
		Update("active", false)
	return res.RowsAffected, res.Error
}

func (r *packageRepository) PriceRangeForCurrency(currency string) (decimal.Decimal, decimal.Decimal, int64, error) {
	var row struct {
		MinPrice decimal.NullDecimal
		MaxPrice decimal.NullDecimal
		Total    int64
	}
	err := r.db.Model(&models.ESIMPackage{}).
		Select("MIN(sell_price) AS min_price, MAX(sell_price) AS max_price, COUNT(*) AS total").
		Where("active = ? AND currency = ?", true, currency).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, decimal.Zero, 0, err
	}
	if !row.MinPrice.Valid || row.Total == 0 {
		return decimal.Zero, decimal.Zero, 0, nil
	}
	return row.MinPrice.Decimal, row.MaxPrice.Decimal, row.Total, nil
}

func (r *packageRepository) UpdateSellPrice(id uint, price decimal.Decimal, overridden bool) error {
	return r.db.Model(&models.ESIMPackage{}).
		Where("id = ?", id).
		Updates(map[string]any{"sell_price": price, "price_overridden": overridden}).Error
}

func (r *packageRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.ESIMPackage{}).Count(&count).Error
	return count, err
}

func (r *packageRepository) CountActive() (int64, error) {
	var count int64
	err := r.db.Model(&models.ESIMPackage{}).Where("active = ?", true).Count(&count).Error
	return count, err
}
