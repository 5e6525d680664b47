package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Provider is an upstream eSIM wholesaler integration. Providers are created
// by configuration and soft-disabled via Enabled, never hard-deleted, because
// historical orders and packages keep referencing them.
type Provider struct {
	ID                   uint            `gorm:"primaryKey" json:"id"`
	Name                 string          `gorm:"type:varchar(100);not null" json:"name"`
	Slug                 string          `gorm:"type:varchar(50);not null;uniqueIndex" json:"slug"`
	Enabled              bool            `gorm:"default:true;index" json:"enabled"`
	IsPreferred          bool            `gorm:"default:false" json:"is_preferred"`
	PricingMarginPercent decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"pricing_margin_percent"`
	MinMarginPercent     decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"min_margin_percent"`
	FailoverPriority     int             `gorm:"not null;default:100;index" json:"failover_priority"`
	SyncIntervalMinutes  int             `gorm:"not null;default:360" json:"sync_interval_minutes"`
	APIRateLimitPerHour  int             `gorm:"not null;default:1000" json:"api_rate_limit_per_hour"`
	LastSyncAt           *time.Time      `json:"last_sync_at"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProviderSnapshot is an immutable value copy of the provider configuration
// taken when a sync run starts. A mid-run admin edit only affects the next
// run, never an in-flight one.
type ProviderSnapshot struct {
	ID                   uint
	Name                 string
	Slug                 string
	Enabled              bool
	PricingMarginPercent decimal.Decimal
	MinMarginPercent     decimal.Decimal
	SyncIntervalMinutes  int
	APIRateLimitPerHour  int
	TakenAt              time.Time
}

// Snapshot returns the value copy used by an in-flight sync run.
func (p *Provider) Snapshot() ProviderSnapshot {
	return ProviderSnapshot{
		ID:                   p.ID,
		Name:                 p.Name,
		Slug:                 p.Slug,
		Enabled:              p.Enabled,
		PricingMarginPercent: p.PricingMarginPercent,
		MinMarginPercent:     p.MinMarginPercent,
		SyncIntervalMinutes:  p.SyncIntervalMinutes,
		APIRateLimitPerHour:  p.APIRateLimitPerHour,
		TakenAt:              time.Now(),
	}
}

// IsStale reports whether the provider's catalog is older than twice its
// sync interval. Stale providers are demoted in failover ordering, not
// excluded: a degraded-but-available provider remains a last resort.
func (p *Provider) IsStale(now time.Time) bool {
	if p.LastSyncAt == nil {
		return true
	}
	maxAge := 2 * time.Duration(p.SyncIntervalMinutes) * time.Minute
	return now.Sub(*p.LastSyncAt) > maxAge
}

// SyncDue reports whether the scheduler should launch a sync for this
// provider.
func (p *Provider) SyncDue(now time.Time) bool {
	if !p.Enabled {
		return false
	}
	if p.LastSyncAt == nil {
		return true
	}
	return now.Sub(*p.LastSyncAt) >= time.Duration(p.SyncIntervalMinutes)*time.Minute
}
