package catalogsync

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/roamfox/roamfox/app/repository"
)

const schedulerInterval = 1 * time.Minute

// Manager schedules background provider syncs. Each enabled provider is
// synced on its own interval; providers run as independent units of work
// and multiple providers sync concurrently.
type Manager struct {
	service   *Service
	providers repository.ProviderRepository

	schedTicker *time.Ticker
	stopCh      chan struct{}
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	running     bool

	inflightMu sync.Mutex
	inflight   map[uint]bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// InitManager wires the global sync manager (singleton).
func InitManager(service *Service, providers repository.ProviderRepository) *Manager {
	managerOnce.Do(func() {
		globalManager = &Manager{
			service:   service,
			providers: providers,
			stopCh:    make(chan struct{}),
			inflight:  make(map[uint]bool),
		}
	})
	return globalManager
}

// GetManager returns the global sync manager.
func GetManager() *Manager {
	if globalManager == nil {
		panic("Sync manager not initialized. Call InitManager first.")
	}
	return globalManager
}

// Start starts the background scheduler.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so the manager can be
	// restarted safely.
	m.stopCh = make(chan struct{})
	var ctx context.Context
	ctx, m.cancel = context.WithCancel(context.Background())
	m.running = true

	log.Info("[SyncManager] Starting provider sync scheduler")

	m.schedTicker = time.NewTicker(schedulerInterval)
	m.wg.Add(1)
	go m.schedulerWorker(ctx)

	log.Info("[SyncManager] Started successfully")
}

// Stop stops the scheduler and cancels in-flight syncs. Cancelled runs do
// not advance LastSyncAt, so the next start resumes cleanly.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[SyncManager] Stopping provider sync scheduler...")

	if m.schedTicker != nil {
		m.schedTicker.Stop()
	}
	if m.cancel != nil {
		m.cancel()
	}
	close(m.stopCh)
	m.running = false

	m.wg.Wait()

	log.Info("[SyncManager] Stopped successfully")
}

// schedulerWorker wakes periodically and launches syncs for providers whose
// interval has elapsed.
func (m *Manager) schedulerWorker(ctx context.Context) {
	defer m.wg.Done()

	// First pass right away so a fresh boot does not wait a full tick.
	m.launchDueSyncs(ctx)

	for {
		select {
		case <-m.stopCh:
			return
		case <-m.schedTicker.C:
			m.launchDueSyncs(ctx)
		}
	}
}

func (m *Manager) launchDueSyncs(ctx context.Context) {
	providers, err := m.providers.GetEnabled()
	if err != nil {
		log.Errorf("[SyncManager] Failed to load providers: %v", err)
		return
	}

	now := time.Now()
	for _, provider := range providers {
		if !provider.SyncDue(now) {
			continue
		}
		if !m.markInflight(provider.ID) {
			continue
		}

		m.wg.Add(1)
		go func(id uint, slug string) {
			defer m.wg.Done()
			defer m.clearInflight(id)

			if _, err := m.service.SyncProvider(ctx, id); err != nil {
				log.Errorf("[SyncManager] Scheduled sync for provider %s failed: %v", slug, err)
			}
		}(provider.ID, provider.Slug)
	}
}

// markInflight guards against launching two concurrent syncs for the same
// provider.
func (m *Manager) markInflight(providerID uint) bool {
	m.inflightMu.Lock()
	defer m.inflightMu.Unlock()
	if m.inflight[providerID] {
		return false
	}
	m.inflight[providerID] = true
	return true
}

func (m *Manager) clearInflight(providerID uint) {
	m.inflightMu.Lock()
	defer m.inflightMu.Unlock()
	delete(m.inflight, providerID)
}
