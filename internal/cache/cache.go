package cache

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Key namespaces, one per concern.
const (
	NamespaceLocation   = "location"
	NamespaceWeather    = "weather"
	NamespaceSyncStatus = "sync-status"
	NamespacePipeline   = "pipeline"
)

// Cache is a time-boxed key/value store. A read after the TTL elapsed is a
// miss, never a stale hit. The cache is an optimization, not a source of
// truth: Set never fails the caller.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Close() error
}

// Key joins a namespace and its parts into a cache key.
func Key(namespace string, parts ...string) string {
	return namespace + ":" + strings.Join(parts, ":")
}

// GetJSON reads key and unmarshals it into T. A corrupt value degrades to a
// miss; it is never propagated to the caller.
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, bool) {
	var v T
	raw, ok := c.Get(ctx, key)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		log.Printf("cache: discarding corrupt value for %s: %v", key, err)
		return v, false
	}
	return v, true
}

// SetJSON marshals v and stores it under key. A marshal failure drops the
// write with a warning.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Printf("cache: dropping write for %s: %v", key, err)
		return
	}
	c.Set(ctx, key, raw, ttl)
}
