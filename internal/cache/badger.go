package cache

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerCache is a durable Cache backed by BadgerDB, which handles TTL
// expiry natively via entry expiration.
type BadgerCache struct {
	db *badger.DB
}

// NewBadgerCache wraps an already-open Badger handle. The handle may be
// shared with other components; whoever opened it closes it.
func NewBadgerCache(db *badger.DB) *BadgerCache {
	return &BadgerCache{db: db}
}

func (c *BadgerCache) Get(ctx context.Context, key string) ([]byte, bool) {
	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			log.Printf("cache: read failed for %s: %v", key, err)
		}
		return nil, false
	}
	return value, true
}

func (c *BadgerCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		// Non-fatal: the cache only saves remote round-trips.
		log.Printf("cache: write failed for %s: %v", key, err)
	}
}

func (c *BadgerCache) Delete(ctx context.Context, key string) {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		log.Printf("cache: delete failed for %s: %v", key, err)
	}
}

// Close is a no-op; the underlying Badger handle is closed by its owner.
func (c *BadgerCache) Close() error {
	return nil
}
