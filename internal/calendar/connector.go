package calendar

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/event-weather-advisor/internal/cache"
)

const (
	// Full-sync window around now.
	fullSyncBack    = 30 * 24 * time.Hour
	fullSyncForward = 30 * 24 * time.Hour

	syncStatusTTL = 24 * time.Hour
)

// Connector fetches a user's events across all configured providers and
// keeps per-provider sync bookkeeping.
type Connector struct {
	providers map[ProviderTag]Provider
	cache     cache.Cache

	// syncLocks serializes syncs per (user, provider) pair.
	syncLocks sync.Map

	now func() time.Time
}

func NewConnector(c cache.Cache, providers ...Provider) *Connector {
	byTag := make(map[ProviderTag]Provider, len(providers))
	for _, p := range providers {
		byTag[p.Tag()] = p
	}
	return &Connector{
		providers: byTag,
		cache:     c,
		now:       time.Now,
	}
}

// ListEvents returns the user's events in the window, ordered by start time
// ascending. With an empty provider tag every configured provider is queried
// concurrently; a provider that errors contributes zero events and the
// failure is logged, not raised.
func (c *Connector) ListEvents(ctx context.Context, userID string, window Window, opts ListOptions, provider ProviderTag) ([]Event, error) {
	if provider != "" {
		p, ok := c.providers[provider]
		if !ok {
			return nil, fmt.Errorf("unknown calendar provider %q", provider)
		}
		events, err := p.ListEvents(ctx, userID, window, opts)
		if err != nil {
			return nil, err
		}
		sortEventsByStart(events)
		return events, nil
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		events []Event
	)

	for _, p := range c.providers {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()

			fetched, err := p.ListEvents(ctx, userID, window, opts)
			if err != nil {
				// Partial provider failure does not fail the whole call.
				log.Printf("calendar: provider %s fetch failed for user %s: %v", p.Tag(), userID, err)
				return
			}

			mu.Lock()
			events = append(events, fetched...)
			mu.Unlock()
		}()
	}

	wg.Wait()

	sortEventsByStart(events)
	return events, nil
}

// Sync refreshes the user's events from one provider and advances the sync
// bookkeeping. Without forceFull, a prior successful sync narrows the window
// to events since that sync; otherwise the full 30-days-back/30-days-forward
// window is requested. LastSync advances to now on success even when zero
// events changed. Syncs for the same (user, provider) pair are serialized.
func (c *Connector) Sync(ctx context.Context, userID string, provider ProviderTag, forceFull bool) (SyncResult, error) {
	p, ok := c.providers[provider]
	if !ok {
		return SyncResult{Status: SyncError}, fmt.Errorf("unknown calendar provider %q", provider)
	}

	lock := c.syncLock(userID, provider)
	lock.Lock()
	defer lock.Unlock()

	now := c.now().UTC()
	statusKey := cache.Key(cache.NamespaceSyncStatus, string(provider), userID)

	window := Window{Start: now.Add(-fullSyncBack), End: now.Add(fullSyncForward)}
	if !forceFull {
		if prior, ok := cache.GetJSON[SyncStatus](ctx, c.cache, statusKey); ok && !prior.LastSync.IsZero() {
			window.Start = prior.LastSync
		}
	}

	events, err := p.ListEvents(ctx, userID, window, ListOptions{})
	if err != nil {
		// Record the failure but keep the prior LastSync so the next
		// incremental sync does not fall back to the full window.
		errStatus := SyncStatus{Status: SyncError}
		if prior, ok := cache.GetJSON[SyncStatus](ctx, c.cache, statusKey); ok {
			errStatus.LastSync = prior.LastSync
		}
		cache.SetJSON(ctx, c.cache, statusKey, errStatus, syncStatusTTL)
		return SyncResult{SyncTime: now, Status: "error"}, err
	}

	cache.SetJSON(ctx, c.cache, statusKey, SyncStatus{LastSync: now, Status: SyncActive}, syncStatusTTL)

	return SyncResult{
		EventsSynced: len(events),
		SyncTime:     now,
		Status:       "success",
	}, nil
}

// SyncStatus returns the stored per-provider sync status for a user.
func (c *Connector) SyncStatus(ctx context.Context, userID string, provider ProviderTag) SyncStatus {
	key := cache.Key(cache.NamespaceSyncStatus, string(provider), userID)
	if status, ok := cache.GetJSON[SyncStatus](ctx, c.cache, key); ok {
		return status
	}
	return SyncStatus{Status: SyncNotSynced}
}

// Providers lists the configured provider tags.
func (c *Connector) Providers() []ProviderTag {
	tags := make([]ProviderTag, 0, len(c.providers))
	for tag := range c.providers {
		tags = append(tags, tag)
	}
	return tags
}

func (c *Connector) syncLock(userID string, provider ProviderTag) *sync.Mutex {
	key := string(provider) + ":" + userID
	muInterface, _ := c.syncLocks.LoadOrStore(key, &sync.Mutex{})
	mu, ok := muInterface.(*sync.Mutex)
	if !ok {
		mu = &sync.Mutex{}
		c.syncLocks.Store(key, mu)
	}
	return mu
}

func sortEventsByStart(events []Event) {
	sort.Slice(events, func(i, j int) bool {
		return events[i].StartTime.Before(events[j].StartTime)
	})
}
