package catalogsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roamfox/roamfox/internal/pkg/normalizer"
)

// PageFetcher is the outbound capability of one upstream provider client:
// fetch a single catalog page. An empty next token ends the catalog. Wire
// formats live entirely inside the client implementations.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageToken string) ([]normalizer.RawOffer, string, error)
}

// UpstreamStatusError is returned by provider clients for HTTP-level
// failures so the fetcher can classify them: 5xx and 429 are transient,
// other 4xx (including auth) abort the provider's sync.
type UpstreamStatusError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Message)
}

// ClientRegistry holds the externally supplied provider clients keyed by
// provider slug.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]PageFetcher
}

// NewClientRegistry creates an empty client registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{clients: make(map[string]PageFetcher)}
}

// Register installs the client for a provider slug, replacing any previous
// one.
func (r *ClientRegistry) Register(slug string, client PageFetcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[slug] = client
}

// Get returns the client for a provider slug.
func (r *ClientRegistry) Get(slug string) (PageFetcher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[slug]
	return client, ok
}

// SyncResult reports one provider sync run. Counts are always filled in,
// even when the run aborted, so the admin layer can distinguish "partially
// failed after N packages" from "never started".
type SyncResult struct {
	RunID        string    `json:"run_id"`
	ProviderID   uint      `json:"provider_id"`
	ProviderSlug string    `json:"provider_slug"`
	Pages        int       `json:"pages"`
	OffersSeen   int       `json:"offers_seen"`
	Upserted     int       `json:"upserted"`
	Skipped      int       `json:"skipped"`
	Deactivated  int       `json:"deactivated"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Error        string    `json:"error,omitempty"`
}
