package memstore

import (
	lru "github.com/hashicorp/golang-lru"
)

// Store mirrors trie.Store's method set. Declaring it here rather than
// importing the trie package keeps memstore free of a dependency back on
// its own consumer; any trie.Store satisfies it structurally.
type Store interface {
	Get(hash [32]byte) ([]byte, bool)
	Put(hash [32]byte, blob []byte)
	Delete(hash [32]byte)
}

// LRUCache wraps a Store with a bounded, read-through LRU cache of node
// blobs, for callers backed by a slower persistent Store who want to
// avoid round-tripping hot nodes on every resolve. Eviction from the
// cache never evicts from inner; it only means the next Get falls
// through to inner again.
type LRUCache struct {
	inner Store
	cache *lru.Cache
}

// NewLRUCache wraps inner with an LRU cache holding up to size entries.
func NewLRUCache(inner Store, size int) *LRUCache {
	c, err := lru.New(size)
	if err != nil {
		panic(err)
	}
	return &LRUCache{inner: inner, cache: c}
}

func (c *LRUCache) Get(hash [32]byte) ([]byte, bool) {
	if v, ok := c.cache.Get(hash); ok {
		return v.([]byte), true
	}
	blob, ok := c.inner.Get(hash)
	if ok {
		c.cache.Add(hash, blob)
	}
	return blob, ok
}

func (c *LRUCache) Put(hash [32]byte, blob []byte) {
	c.inner.Put(hash, blob)
	c.cache.Add(hash, blob)
}

func (c *LRUCache) Delete(hash [32]byte) {
	c.inner.Delete(hash)
	c.cache.Remove(hash)
}
