package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/i474232898/event-weather-advisor/internal/recommend"
)

func openTestBadger(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// stores under test share one behavioral contract.
func stores(t *testing.T) map[string]recommend.Store {
	return map[string]recommend.Store{
		"memory": NewMemoryStore(),
		"badger": NewBadgerStore(openTestBadger(t)),
	}
}

func rec(user string, createdAt time.Time, title string) recommend.Recommendation {
	return recommend.Recommendation{
		UserID:     user,
		EventID:    "ev-" + title,
		Category:   recommend.CategoryActivitySuggestion,
		Title:      title,
		Message:    "message for " + title,
		Confidence: 0.8,
		CreatedAt:  createdAt,
	}
}

func TestListNewestFirstWithPagination(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 5; i++ {
				r := rec("u1", base.Add(time.Duration(i)*time.Minute), fmt.Sprintf("r%d", i))
				if _, err := s.Insert(ctx, r); err != nil {
					t.Fatalf("insert: %v", err)
				}
			}

			page, err := s.List(ctx, "u1", 2, 0)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(page) != 2 {
				t.Fatalf("expected 2 results, got %d", len(page))
			}
			if page[0].Title != "r4" || page[1].Title != "r3" {
				t.Fatalf("expected newest first, got %s, %s", page[0].Title, page[1].Title)
			}

			page, err = s.List(ctx, "u1", 2, 2)
			if err != nil {
				t.Fatalf("list offset: %v", err)
			}
			if len(page) != 2 || page[0].Title != "r2" {
				t.Fatalf("unexpected second page: %+v", page)
			}

			// Other users see nothing.
			page, err = s.List(ctx, "u2", 10, 0)
			if err != nil {
				t.Fatalf("list other user: %v", err)
			}
			if len(page) != 0 {
				t.Fatalf("expected empty page for other user, got %d", len(page))
			}
		})
	}
}

func TestInsertIsAppendOnly(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first, err := s.Insert(ctx, rec("u1", base, "advice"))
			if err != nil {
				t.Fatalf("insert: %v", err)
			}
			second, err := s.Insert(ctx, rec("u1", base.Add(time.Second), "advice"))
			if err != nil {
				t.Fatalf("insert: %v", err)
			}
			if first == second {
				t.Fatal("re-insert must create a new row, not reuse the ID")
			}

			page, err := s.List(ctx, "u1", 10, 0)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(page) != 2 {
				t.Fatalf("expected 2 rows, got %d", len(page))
			}
		})
	}
}

func TestMarkReadOwnerOnly(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id, err := s.Insert(ctx, rec("u1", base, "r1"))
			if err != nil {
				t.Fatalf("insert: %v", err)
			}

			// Mismatched owner: authorization error, no mutation.
			if err := s.MarkRead(ctx, id, "u2"); !errors.Is(err, ErrAuthorizationDenied) {
				t.Fatalf("expected ErrAuthorizationDenied, got %v", err)
			}
			page, _ := s.List(ctx, "u1", 1, 0)
			if page[0].IsRead {
				t.Fatal("denied mark_read must not mutate the record")
			}

			if err := s.MarkRead(ctx, id, "u1"); err != nil {
				t.Fatalf("mark read: %v", err)
			}
			page, _ = s.List(ctx, "u1", 1, 0)
			if !page[0].IsRead {
				t.Fatal("expected read flag set")
			}

			if err := s.MarkRead(ctx, "missing", "u1"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}
