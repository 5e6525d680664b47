package brackets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"

	"github.com/roamfox/roamfox/app/models"
	"github.com/roamfox/roamfox/app/repository"
	"github.com/roamfox/roamfox/internal/pkg/apperr"
	"github.com/roamfox/roamfox/internal/pkg/cache"
)

const generateLockTTL = 5 * time.Minute

// ProposedBracket is one bucket of a preview run. Nothing is persisted
// until Generate is called.
type ProposedBracket struct {
	BucketIndex int             `json:"bucket_index"`
	MinPrice    decimal.Decimal `json:"min_price"`
	MaxPrice    decimal.Decimal `json:"max_price"`
	ProductID   string          `json:"product_id"`
}

// Generator partitions the observed sell-price range of active packages
// into fixed-width buckets, one app-store product per bucket.
type Generator struct {
	packages repository.PackageRepository
	brackets repository.BracketRepository
	locks    cache.Locker
}

// NewGenerator creates a bracket generator from injected repositories.
func NewGenerator(packages repository.PackageRepository, brackets repository.BracketRepository) *Generator {
	return &Generator{packages: packages, brackets: brackets, locks: cache.NewLocker()}
}

// ProductID derives the deterministic store product identifier for one
// bucket. It depends only on (currency, bucket index, step size), so
// repeated generation with identical inputs is idempotent and never creates
// duplicate store products.
func ProductID(currency string, index int, step decimal.Decimal) string {
	stepToken := strings.ReplaceAll(step.String(), ".", "_")
	return fmt.Sprintf("roamfox.%s.tier%d.s%s", strings.ToLower(currency), index, stepToken)
}

// Preview computes the bracket set for a currency and step size without
// persisting anything.
func (g *Generator) Preview(ctx context.Context, currency string, step decimal.Decimal) ([]ProposedBracket, error) {
	_ = ctx
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return nil, &apperr.ValidationError{Field: "currency", Reason: "must be a 3-letter ISO code"}
	}
	if step.LessThanOrEqual(decimal.Zero) {
		return nil, &apperr.ValidationError{Field: "step_size", Reason: "must be greater than zero"}
	}

	min, max, count, err := g.packages.PriceRangeForCurrency(currency)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, &apperr.NotFoundError{Entity: "active packages", Ref: currency}
	}

	// Start at floor(min/step)*step and emit consecutive half-open
	// intervals of width step until max is covered.
	lower := min.Div(step).Floor().Mul(step)
	var proposed []ProposedBracket
	for index := 0; lower.LessThanOrEqual(max); index++ {
		upper := lower.Add(step)
		proposed = append(proposed, ProposedBracket{
			BucketIndex: index,
			MinPrice:    lower,
			MaxPrice:    upper,
			ProductID:   ProductID(currency, index, step),
		})
		lower = upper
	}
	return proposed, nil
}

// Generate computes and persists the bracket set for a currency. The prior
// generation is deactivated, not deleted, inside the same transaction.
// Generation is single-flight per currency.
func (g *Generator) Generate(ctx context.Context, currency string, step decimal.Decimal) ([]models.PriceBracket, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	lockKey := "brackets:generate:lock:" + currency
	ok, err := g.locks.Acquire(ctx, lockKey, generateLockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &apperr.ConflictError{Op: "bracket generation for " + currency}
	}
	defer func() {
		if err := g.locks.Release(context.Background(), lockKey); err != nil {
			log.Warnf("[Brackets] Failed to release generation lock for %s: %v", currency, err)
		}
	}()

	proposed, err := g.Preview(ctx, currency, step)
	if err != nil {
		return nil, err
	}

	rows := make([]models.PriceBracket, 0, len(proposed))
	for _, p := range proposed {
		rows = append(rows, models.PriceBracket{
			Currency:        currency,
			StepSize:        step,
			BucketIndex:     p.BucketIndex,
			MinPrice:        p.MinPrice,
			MaxPrice:        p.MaxPrice,
			ProductID:       p.ProductID,
			AppStoreStatus:  models.BracketStatusPending,
			PlayStoreStatus: models.BracketStatusPending,
			IsActive:        true,
		})
	}

	if err := g.brackets.ReplaceForCurrency(currency, rows); err != nil {
		return nil, err
	}

	log.Infof("[Brackets] Generated %d brackets for %s at step %s", len(rows), currency, step)
	return g.brackets.ListActiveByCurrency(currency)
}
