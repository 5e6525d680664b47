package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BestPriceMark records the winning package of one equivalence group after a
// comparison run. Marks are replaced wholesale on every run (overwritten,
// never appended) so readers only ever see one consistent generation.
type BestPriceMark struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	GroupKey      string          `gorm:"type:varchar(191);not null;uniqueIndex" json:"group_key"`
	PackageID     uint            `gorm:"not null;index" json:"package_id"`
	ProviderID    uint            `gorm:"not null;index" json:"provider_id"`
	BestPrice     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"best_price"`
	RunnerUpDelta decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"runner_up_delta"`
	MemberCount   int             `gorm:"not null;default:1" json:"member_count"`
	ComputedAt    time.Time       `gorm:"not null" json:"computed_at"`
}
