package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/i474232898/event-weather-advisor/internal/recommend"
)

var (
	// ErrNotFound is returned when no recommendation matches the given ID.
	ErrNotFound = errors.New("recommendation not found")
	// ErrAuthorizationDenied is returned when a mutation names a
	// recommendation owned by a different user. The ownership check lives
	// here, not in the transport layer: it is a data-integrity guarantee.
	ErrAuthorizationDenied = errors.New("recommendation belongs to another user")
)

// Key prefixes for BadgerDB storage.
const (
	recKeyPrefix   = "rec:"
	recIDKeyPrefix = "recid:"
)

// BadgerStore persists recommendations in BadgerDB, append-only. Primary
// keys embed an inverted creation timestamp so forward iteration yields
// newest-first pages; a secondary index maps IDs back to primary keys.
type BadgerStore struct {
	db  *badger.DB
	now func() time.Time
}

// NewBadgerStore wraps an already-open Badger handle; whoever opened it
// closes it.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db, now: time.Now}
}

func primaryKey(userID string, createdAt time.Time, id string) []byte {
	inverted := uint64(math.MaxInt64) - uint64(createdAt.UnixNano())
	return []byte(fmt.Sprintf("%s%s:%020d:%s", recKeyPrefix, userID, inverted, id))
}

// Insert persists a new recommendation and returns its identifier. Existing
// rows are never overwritten.
func (s *BadgerStore) Insert(ctx context.Context, rec recommend.Recommendation) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal recommendation: %w", err)
	}

	key := primaryKey(rec.UserID, rec.CreatedAt, rec.ID)
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set([]byte(recIDKeyPrefix+rec.ID), key)
	})
	if err != nil {
		return "", fmt.Errorf("insert recommendation: %w", err)
	}
	return rec.ID, nil
}

// List returns the user's recommendations sorted by creation time
// descending. An unknown user yields an empty page, not an error.
func (s *BadgerStore) List(ctx context.Context, userID string, limit, offset int) ([]recommend.Recommendation, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	var recs []recommend.Recommendation
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recKeyPrefix + userID + ":")

		it := txn.NewIterator(opts)
		defer it.Close()

		skipped := 0
		for it.Rewind(); it.Valid(); it.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			if len(recs) >= limit {
				break
			}
			var rec recommend.Recommendation
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			recs = append(recs, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	return recs, nil
}

// MarkRead flips the read flag of a recommendation owned by userID. Nothing
// mutates when the owner does not match.
func (s *BadgerStore) MarkRead(ctx context.Context, id, userID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		indexItem, err := txn.Get([]byte(recIDKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		key, err := indexItem.ValueCopy(nil)
		if err != nil {
			return err
		}

		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var rec recommend.Recommendation
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return err
		}

		if rec.UserID != userID {
			return ErrAuthorizationDenied
		}
		if rec.IsRead {
			return nil
		}

		rec.IsRead = true
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}
