package catalogsync

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/roamfox/roamfox/app/models"
	"github.com/roamfox/roamfox/internal/pkg/apperr"
	"github.com/roamfox/roamfox/internal/pkg/cache"
	"github.com/roamfox/roamfox/internal/pkg/normalizer"
)

const (
	maxPageRetries = 3
	baseBackoff    = 500 * time.Millisecond
	pageTimeout    = 30 * time.Second
)

// pageLimiter abstracts the per-provider rate limiter so tests can swap the
// Redis-backed fixed window for an in-memory one.
type pageLimiter interface {
	Allow(ctx context.Context) (bool, time.Duration, error)
}

// Fetcher pages through one provider's upstream catalog. Every invocation
// restarts from page one; the limiter and retry policy are scoped to a
// single provider, so concurrent syncs never contend with each other.
type Fetcher struct {
	clients    *ClientRegistry
	newLimiter func(snap models.ProviderSnapshot) pageLimiter
	backoff    time.Duration
}

// NewFetcher creates a fetcher over the given client registry with the
// Redis-backed hourly rate window.
func NewFetcher(clients *ClientRegistry) *Fetcher {
	return &Fetcher{
		clients: clients,
		newLimiter: func(snap models.ProviderSnapshot) pageLimiter {
			return cache.NewHourlyRateWindow("ratelimit:provider:"+snap.Slug, snap.APIRateLimitPerHour)
		},
		backoff: baseBackoff,
	}
}

// FetchCatalog streams the provider's catalog page by page into onPage.
// Transient failures (network errors, 5xx, 429, timeouts) are retried with
// exponential backoff; a non-transient failure aborts with a ProviderError.
// The page count covers successfully delivered pages, so callers can report
// processed-so-far progress even on abort.
func (f *Fetcher) FetchCatalog(ctx context.Context, snap models.ProviderSnapshot, onPage func(offers []normalizer.RawOffer) error) (int, error) {
	client, ok := f.clients.Get(snap.Slug)
	if !ok {
		return 0, &apperr.NotFoundError{Entity: "provider client", Ref: snap.Slug}
	}

	limiter := f.newLimiter(snap)
	pages := 0
	pageToken := ""

	for {
		if err := f.waitForSlot(ctx, snap.Slug, limiter); err != nil {
			return pages, err
		}

		offers, nextToken, err := f.fetchPageWithRetry(ctx, snap.Slug, client, pageToken)
		if err != nil {
			return pages, err
		}

		pages++
		if err := onPage(offers); err != nil {
			return pages, err
		}

		if nextToken == "" {
			return pages, nil
		}
		pageToken = nextToken
	}
}

// waitForSlot blocks until the hourly rate window admits another request.
func (f *Fetcher) waitForSlot(ctx context.Context, slug string, limiter pageLimiter) error {
	for {
		ok, wait, err := limiter.Allow(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		log.Warnf("[CatalogSync] Provider %s hit its hourly rate limit, waiting %v", slug, wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (f *Fetcher) fetchPageWithRetry(ctx context.Context, slug string, client PageFetcher, pageToken string) ([]normalizer.RawOffer, string, error) {
	var lastErr error

	for attempt := 0; attempt <= maxPageRetries; attempt++ {
		if attempt > 0 {
			backoff := f.backoff << (attempt - 1)
			log.Warnf("[CatalogSync] Provider %s page retry %d/%d after %v: %v",
				slug, attempt, maxPageRetries, backoff, lastErr)
			select {
			case <-ctx.Done():
				return nil, "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		pageCtx, cancel := context.WithTimeout(ctx, pageTimeout)
		offers, nextToken, err := client.FetchPage(pageCtx, pageToken)
		cancel()

		if err == nil {
			return offers, nextToken, nil
		}
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}

		var status *UpstreamStatusError
		if errors.As(err, &status) && !isTransientStatus(status.StatusCode) {
			return nil, "", &apperr.ProviderError{Slug: slug, Code: status.StatusCode, Err: err}
		}
		// Network errors, 5xx, 429 and page timeouts are all retryable.
		lastErr = err
	}

	code := 0
	var status *UpstreamStatusError
	if errors.As(lastErr, &status) {
		code = status.StatusCode
	}
	return nil, "", &apperr.ProviderError{Slug: slug, Code: code, Err: lastErr}
}

func isTransientStatus(code int) bool {
	return code >= 500 || code == 429
}
