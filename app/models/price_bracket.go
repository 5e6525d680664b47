package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Submission states for a bracket's store product on one mobile platform.
const (
	BracketStatusPending = "pending"
	BracketStatusSuccess = "success"
	BracketStatusError   = "error"
)

// PriceBracket is one fixed-width price bucket emitted for app-store
// in-app-purchase catalogs. The interval is half-open: [MinPrice, MaxPrice).
// ProductID is deterministic for (currency, bucket index, step size) so
// regenerating with identical inputs never creates duplicate store products.
// A new generation deactivates the previous one for the currency instead of
// deleting it, preserving historical submission-status records.
type PriceBracket struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Currency        string          `gorm:"type:varchar(3);not null;index" json:"currency"`
	StepSize        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"step_size"`
	BucketIndex     int             `gorm:"not null" json:"bucket_index"`
	MinPrice        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"min_price"`
	MaxPrice        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"max_price"`
	ProductID       string          `gorm:"type:varchar(191);not null;uniqueIndex" json:"product_id"`
	AppStoreStatus  string          `gorm:"type:varchar(16);not null;default:'pending'" json:"app_store_status"`
	PlayStoreStatus string          `gorm:"type:varchar(16);not null;default:'pending'" json:"play_store_status"`
	IsActive        bool            `gorm:"default:true;index" json:"is_active"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// Contains reports whether price falls inside the half-open interval.
func (b *PriceBracket) Contains(price decimal.Decimal) bool {
	return price.GreaterThanOrEqual(b.MinPrice) && price.LessThan(b.MaxPrice)
}
