package comparison

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"

	"github.com/roamfox/roamfox/app/models"
	"github.com/roamfox/roamfox/app/repository"
	"github.com/roamfox/roamfox/internal/pkg/apperr"
	"github.com/roamfox/roamfox/internal/pkg/cache"
)

const (
	runLockKey = "comparison:run:lock"
	runLockTTL = 10 * time.Minute
)

// Result summarizes a completed comparison run.
type Result struct {
	TotalPackages   int       `json:"total_packages"`
	BestPriceGroups int       `json:"best_price_groups"`
	ComputedAt      time.Time `json:"computed_at"`
}

// Engine recomputes best-price marks across the persisted catalog.
type Engine struct {
	packages repository.PackageRepository
	marks    repository.BestPriceRepository
	locks    cache.Locker
}

// NewEngine creates a comparison engine from injected repositories.
func NewEngine(packages repository.PackageRepository, marks repository.BestPriceRepository) *Engine {
	return &Engine{packages: packages, marks: marks, locks: cache.NewLocker()}
}

// RunComparison groups all active packages of enabled providers into
// equivalence groups and records the best-price winner of each group. The
// run is single-flight: a second invocation while one is in progress is
// rejected with a ConflictError. The whole mark set is replaced in one
// transaction, so a run is always completed and non-partial.
func (e *Engine) RunComparison(ctx context.Context) (*Result, error) {
	ok, err := e.locks.Acquire(ctx, runLockKey, runLockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &apperr.ConflictError{Op: "comparison run"}
	}
	defer func() {
		if err := e.locks.Release(context.Background(), runLockKey); err != nil {
			log.Warnf("[Comparison] Failed to release run lock: %v", err)
		}
	}()

	pkgs, err := e.packages.ListActiveWithProviders()
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]models.ESIMPackage)
	compared := 0
	for _, pkg := range pkgs {
		// Packages without a resolved destination or region are audit-only:
		// they are never listed and never share a best-price group.
		if !pkg.CustomerVisible() {
			continue
		}
		compared++
		key := pkg.EquivalenceKey()
		groups[key] = append(groups[key], pkg)
	}

	now := time.Now()
	marks := make([]models.BestPriceMark, 0, len(groups))
	for key, members := range groups {
		winner, delta := pickWinner(members)
		marks = append(marks, models.BestPriceMark{
			GroupKey:      key,
			PackageID:     winner.ID,
			ProviderID:    winner.ProviderID,
			BestPrice:     winner.SellPrice,
			RunnerUpDelta: delta,
			MemberCount:   len(members),
			ComputedAt:    now,
		})
	}

	if err := e.marks.ReplaceAll(marks); err != nil {
		return nil, err
	}

	log.Infof("[Comparison] Marked %d best-price winners across %d packages", len(marks), compared)
	return &Result{
		TotalPackages:   compared,
		BestPriceGroups: len(marks),
		ComputedAt:      now,
	}, nil
}

// pickWinner selects the group member with the lowest sell price. Ties go
// to the provider with the lower failover priority rank, then to the most
// recently updated package, then to the lower package id, so the same
// snapshot always yields the same winner regardless of input order. The
// runner-up delta is zero for single-member groups.
func pickWinner(members []models.ESIMPackage) (models.ESIMPackage, decimal.Decimal) {
	sorted := make([]models.ESIMPackage, len(members))
	copy(sorted, members)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.SellPrice.Equal(b.SellPrice) {
			return a.SellPrice.LessThan(b.SellPrice)
		}
		ap, bp := priorityOf(a), priorityOf(b)
		if ap != bp {
			return ap < bp
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})

	winner := sorted[0]
	if len(sorted) == 1 {
		return winner, decimal.Zero
	}
	return winner, sorted[1].SellPrice.Sub(winner.SellPrice)
}

func priorityOf(pkg models.ESIMPackage) int {
	if pkg.Provider == nil {
		return int(^uint(0) >> 1)
	}
	return pkg.Provider.FailoverPriority
}
