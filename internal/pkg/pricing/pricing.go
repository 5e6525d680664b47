package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/roamfox/roamfox/app/repository"
	"github.com/roamfox/roamfox/internal/pkg/apperr"
)

var oneHundred = decimal.NewFromInt(100)

// MinorUnits returns the number of decimal digits of the currency's minor
// unit (ISO 4217).
func MinorUnits(currency string) int32 {
	switch currency {
	case "JPY", "KRW", "VND", "ISK":
		return 0
	case "BHD", "KWD", "OMR", "JOD", "TND":
		return 3
	default:
		return 2
	}
}

// ComputeSellPrice applies the margin to the wholesale cost and rounds
// half-up at the currency's minor-unit precision:
//
//	sell = wholesale * (1 + margin/100)
func ComputeSellPrice(wholesale, marginPercent decimal.Decimal, currency string) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(marginPercent.Div(oneHundred))
	return wholesale.Mul(factor).Round(MinorUnits(currency))
}

// EffectiveMarginPercent returns the margin implied by a sell price.
func EffectiveMarginPercent(wholesale, sell decimal.Decimal) decimal.Decimal {
	if wholesale.IsZero() {
		return decimal.Zero
	}
	return sell.Sub(wholesale).Div(wholesale).Mul(oneHundred)
}

// ValidateOverride checks an admin-entered price override against the
// provider's margin floor. A violating override is rejected, never clamped:
// pricing integrity must be explicit.
func ValidateOverride(wholesale, override, minMarginPercent decimal.Decimal) error {
	if override.LessThanOrEqual(decimal.Zero) {
		return &apperr.ValidationError{Field: "sell_price", Reason: "override must be positive"}
	}
	effective := EffectiveMarginPercent(wholesale, override)
	if effective.LessThan(minMarginPercent) {
		return &apperr.ValidationError{
			Field: "sell_price",
			Reason: fmt.Sprintf("effective margin %s%% is below the %s%% floor",
				effective.Round(2), minMarginPercent),
		}
	}
	return nil
}

// Service applies pricing rules against the persisted catalog.
type Service struct {
	providers repository.ProviderRepository
	packages  repository.PackageRepository
}

// NewService creates a pricing service from injected repositories.
func NewService(providers repository.ProviderRepository, packages repository.PackageRepository) *Service {
	return &Service{providers: providers, packages: packages}
}

// ApplyOverride sets an explicit admin sell price on one package after
// validating it against the owning provider's margin floor.
func (s *Service) ApplyOverride(ctx context.Context, packageID uint, override decimal.Decimal) error {
	_ = ctx
	pkg, err := s.packages.GetByID(packageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &apperr.NotFoundError{Entity: "package", Ref: fmt.Sprintf("%d", packageID)}
		}
		return err
	}

	provider, err := s.providers.GetByID(pkg.ProviderID)
	if err != nil {
		return err
	}

	override = override.Round(MinorUnits(pkg.Currency))
	if err := ValidateOverride(pkg.WholesaleCost, override, provider.MinMarginPercent); err != nil {
		return err
	}

	return s.packages.UpdateSellPrice(pkg.ID, override, true)
}

// RecomputeProviderPrices re-derives the sell price of every active,
// non-overridden package of a provider from its current margin. The pass is
// idempotent and safe to re-run; it runs after every margin change.
func (s *Service) RecomputeProviderPrices(ctx context.Context, providerID uint) (int, error) {
	provider, err := s.providers.GetByID(providerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, &apperr.NotFoundError{Entity: "provider", Ref: fmt.Sprintf("%d", providerID)}
		}
		return 0, err
	}

	pkgs, err := s.packages.ListActiveByProvider(providerID)
	if err != nil {
		return 0, err
	}

	updated := 0
	for i := range pkgs {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}
		pkg := &pkgs[i]
		if pkg.PriceOverridden {
			continue
		}
		price := ComputeSellPrice(pkg.WholesaleCost, provider.PricingMarginPercent, pkg.Currency)
		if price.Equal(pkg.SellPrice) {
			continue
		}
		if err := s.packages.UpdateSellPrice(pkg.ID, price, false); err != nil {
			return updated, err
		}
		updated++
	}

	log.Infof("[Pricing] Recomputed %d of %d packages for provider %s", updated, len(pkgs), provider.Slug)
	return updated, nil
}
