// Package cache provides a generic LRU cache with per-entry TTL. Expired
// entries stay readable through GetStale until evicted.
package cache

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

var _ Cache[int] = (*LRUCache[int])(nil)
