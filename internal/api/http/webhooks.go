package httpapi

import (
	"context"
	"log"
	"time"

	"github.com/i474232898/event-weather-advisor/internal/calendar"
)

// Notification is one inbound change notice from a calendar provider.
type Notification struct {
	UserID   string
	Provider calendar.ProviderTag
}

// WebhookQueue decouples webhook delivery from processing. The request path
// only enqueues; a background drainer runs an incremental sync per notice.
// A full queue drops the notice: the periodic sync will catch up, and the
// provider gets its 202 either way.
type WebhookQueue struct {
	notices chan Notification
	events  EventService
}

func NewWebhookQueue(events EventService, size int) *WebhookQueue {
	if size <= 0 {
		size = 64
	}
	return &WebhookQueue{
		notices: make(chan Notification, size),
		events:  events,
	}
}

// Enqueue accepts a notice without blocking the request path.
func (q *WebhookQueue) Enqueue(n Notification) {
	select {
	case q.notices <- n:
	default:
		log.Printf("webhooks: queue full, dropping notice for user %s provider %s", n.UserID, n.Provider)
	}
}

// Start runs the drainer until ctx is cancelled.
func (q *WebhookQueue) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-q.notices:
				syncCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				result, err := q.events.Sync(syncCtx, n.UserID, n.Provider, false)
				cancel()
				if err != nil {
					log.Printf("webhooks: sync for user %s provider %s failed: %v", n.UserID, n.Provider, err)
					continue
				}
				log.Printf("webhooks: synced %d events for user %s provider %s", result.EventsSynced, n.UserID, n.Provider)
			}
		}
	}()
}

// Len reports the number of queued notices.
func (q *WebhookQueue) Len() int {
	return len(q.notices)
}
