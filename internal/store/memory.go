package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/event-weather-advisor/internal/recommend"
)

// MemoryStore is a concurrency-safe in-memory implementation of the
// recommendation store, used in tests and cache-less runs.
type MemoryStore struct {
	mu sync.RWMutex

	// key: user ID, value: recommendations newest-first
	data map[string][]recommend.Recommendation
	byID map[string]string // recommendation ID -> owning user

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]recommend.Recommendation),
		byID: make(map[string]string),
		now:  time.Now,
	}
}

func (s *MemoryStore) Insert(ctx context.Context, rec recommend.Recommendation) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recs := append(s.data[rec.UserID], rec)
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	s.data[rec.UserID] = recs
	s.byID[rec.ID] = rec.UserID

	return rec.ID, nil
}

func (s *MemoryStore) List(ctx context.Context, userID string, limit, offset int) ([]recommend.Recommendation, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.data[userID]
	if offset >= len(recs) {
		return nil, nil
	}
	end := offset + limit
	if end > len(recs) {
		end = len(recs)
	}

	page := make([]recommend.Recommendation, end-offset)
	copy(page, recs[offset:end])
	return page, nil
}

func (s *MemoryStore) MarkRead(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if owner != userID {
		return ErrAuthorizationDenied
	}

	recs := s.data[owner]
	for i := range recs {
		if recs[i].ID == id {
			recs[i].IsRead = true
			return nil
		}
	}
	return ErrNotFound
}
