package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// UnlimitedDataSentinel is stored in DataAmountBytes for unlimited plans.
const UnlimitedDataSentinel int64 = -1

// ESIMPackage is the normalized, customer-facing representation of one
// upstream offer. Rows are upserted per sync keyed by (ProviderID,
// ProviderNativeID) and marked inactive when absent from a later sync;
// they are never deleted because historical orders reference them.
type ESIMPackage struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	ProviderID       uint            `gorm:"not null;index:ux_packages_provider_native,unique,priority:1;index" json:"provider_id"`
	Provider         *Provider       `gorm:"foreignKey:ProviderID" json:"provider,omitempty"`
	ProviderNativeID string          `gorm:"type:varchar(191);not null;index:ux_packages_provider_native,unique,priority:2" json:"provider_native_id"`
	DestinationID    *uint           `gorm:"index" json:"destination_id"`
	RegionID         *uint           `gorm:"index" json:"region_id"`
	Title            string          `gorm:"type:varchar(255);not null" json:"title"`
	DataAmountBytes  int64           `gorm:"not null" json:"data_amount_bytes"`
	IsUnlimited      bool            `gorm:"default:false" json:"is_unlimited"`
	ValidityDays     int             `gorm:"not null" json:"validity_days"`
	WholesaleCost    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"wholesale_cost"`
	SellPrice        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"sell_price"`
	Currency         string          `gorm:"type:varchar(3);not null;index" json:"currency"`
	VoiceMinutes     int             `gorm:"not null;default:0" json:"voice_minutes"`
	SMSCount         int             `gorm:"not null;default:0" json:"sms_count"`
	PriceOverridden  bool            `gorm:"default:false" json:"price_overridden"`
	Active           bool            `gorm:"default:true;index" json:"active"`
	LastSeenAt       time.Time       `gorm:"not null" json:"last_seen_at"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ESIMPackage) TableName() string {
	return "esim_packages"
}

// EquivalenceKey returns the grouping key under which packages from
// different providers count as interchangeable offers: same destination or
// region, same data amount (or unlimited), same validity and same voice/SMS
// inclusion. The key is computed, never persisted.
func (p *ESIMPackage) EquivalenceKey() string {
	scope := "x"
	if p.DestinationID != nil {
		scope = fmt.Sprintf("d%d", *p.DestinationID)
	} else if p.RegionID != nil {
		scope = fmt.Sprintf("r%d", *p.RegionID)
	}
	data := fmt.Sprintf("%d", p.DataAmountBytes)
	if p.IsUnlimited {
		data = "unl"
	}
	return fmt.Sprintf("%s|%s|%dd|%dv|%ds", scope, data, p.ValidityDays, p.VoiceMinutes, p.SMSCount)
}

// CustomerVisible reports whether the package may appear in storefront
// listings. Packages without a resolved destination or region stay in the
// catalog for audit but are never listed.
func (p *ESIMPackage) CustomerVisible() bool {
	return p.Active && (p.DestinationID != nil || p.RegionID != nil)
}
