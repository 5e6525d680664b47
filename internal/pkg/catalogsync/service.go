package catalogsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/roamfox/roamfox/app/models"
	"github.com/roamfox/roamfox/app/repository"
	"github.com/roamfox/roamfox/internal/pkg/apperr"
	"github.com/roamfox/roamfox/internal/pkg/normalizer"
	"github.com/roamfox/roamfox/internal/pkg/pricing"
)

// Service runs provider catalog syncs: fetch, normalize, price, persist.
type Service struct {
	providers repository.ProviderRepository
	packages  repository.PackageRepository
	norm      *normalizer.Normalizer
	fetcher   *Fetcher
}

// NewService creates a sync service from injected collaborators.
func NewService(
	providers repository.ProviderRepository,
	packages repository.PackageRepository,
	norm *normalizer.Normalizer,
	fetcher *Fetcher,
) *Service {
	return &Service{
		providers: providers,
		packages:  packages,
		norm:      norm,
		fetcher:   fetcher,
	}
}

// SyncProvider syncs one provider's catalog. The run works on a value
// snapshot of the provider configuration taken at start, so a mid-run admin
// edit cannot corrupt it. The returned result always carries the counts
// processed so far, even when err is non-nil.
//
// On full success, this provider's packages that were absent from the run
// are marked inactive and LastSyncAt is advanced. On abort or cancellation,
// already-upserted rows are kept but nothing is deactivated and LastSyncAt
// stays unchanged, so the next run restarts cleanly.
func (s *Service) SyncProvider(ctx context.Context, providerID uint) (*SyncResult, error) {
	provider, err := s.providers.GetByID(providerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperr.NotFoundError{Entity: "provider", Ref: fmt.Sprintf("%d", providerID)}
		}
		return nil, err
	}
	if !provider.Enabled {
		return nil, &apperr.ValidationError{Field: "provider", Reason: "provider " + provider.Slug + " is disabled"}
	}

	snap := provider.Snapshot()
	startedAt := time.Now()
	result := &SyncResult{
		RunID:        uuid.New().String(),
		ProviderID:   snap.ID,
		ProviderSlug: snap.Slug,
		StartedAt:    startedAt,
	}

	log.Infof("[CatalogSync] Starting sync %s for provider %s", result.RunID, snap.Slug)

	pages, fetchErr := s.fetcher.FetchCatalog(ctx, snap, func(offers []normalizer.RawOffer) error {
		for _, offer := range offers {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			result.OffersSeen++
			if err := s.ingestOffer(snap, offer); err != nil {
				// A single malformed offer never aborts the batch.
				log.Warnf("[CatalogSync] Provider %s: skipping offer %s: %v", snap.Slug, offer.NativeID, err)
				result.Skipped++
				continue
			}
			result.Upserted++
		}
		return nil
	})
	result.Pages = pages

	if fetchErr != nil {
		result.Error = fetchErr.Error()
		result.FinishedAt = time.Now()
		log.Errorf("[CatalogSync] Sync %s for provider %s aborted after %d pages (%d upserted): %v",
			result.RunID, snap.Slug, result.Pages, result.Upserted, fetchErr)
		return result, fetchErr
	}

	deactivated, err := s.packages.DeactivateUnseen(snap.ID, startedAt)
	if err != nil {
		result.Error = err.Error()
		result.FinishedAt = time.Now()
		return result, err
	}
	result.Deactivated = int(deactivated)

	if err := s.providers.UpdateLastSyncAt(snap.ID, time.Now()); err != nil {
		result.Error = err.Error()
		result.FinishedAt = time.Now()
		return result, err
	}

	result.FinishedAt = time.Now()
	log.Infof("[CatalogSync] Sync %s for provider %s done: %d pages, %d upserted, %d skipped, %d deactivated",
		result.RunID, snap.Slug, result.Pages, result.Upserted, result.Skipped, result.Deactivated)
	return result, nil
}

// ingestOffer normalizes one raw offer, stamps the derived sell price and
// upserts it keyed by (provider, native id). Admin price overrides on an
// existing row survive the sync; overridden prices are only replaced by an
// explicit admin action.
func (s *Service) ingestOffer(snap models.ProviderSnapshot, offer normalizer.RawOffer) error {
	pkg, err := s.norm.Normalize(snap.Slug, offer)
	if err != nil {
		return err
	}

	pkg.ProviderID = snap.ID
	pkg.SellPrice = pricing.ComputeSellPrice(pkg.WholesaleCost, snap.PricingMarginPercent, pkg.Currency)
	pkg.LastSeenAt = time.Now()

	existing, err := s.packages.GetByProviderNativeID(snap.ID, pkg.ProviderNativeID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if existing != nil && existing.PriceOverridden {
		pkg.SellPrice = existing.SellPrice
		pkg.PriceOverridden = true
	}

	return s.packages.Upsert(pkg)
}

// SyncAll syncs every enabled provider concurrently, one goroutine per
// provider. A provider's failure is isolated: it is reported in its own
// result and never blocks or fails the others.
func (s *Service) SyncAll(ctx context.Context) ([]*SyncResult, error) {
	providers, err := s.providers.GetEnabled()
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		results []*SyncResult
		wg      sync.WaitGroup
	)
	for _, provider := range providers {
		wg.Add(1)
		go func(id uint, slug string) {
			defer wg.Done()
			result, err := s.SyncProvider(ctx, id)
			if err != nil && result == nil {
				result = &SyncResult{ProviderID: id, ProviderSlug: slug, Error: err.Error()}
			}
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}(provider.ID, provider.Slug)
	}
	wg.Wait()

	return results, nil
}
