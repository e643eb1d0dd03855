package db

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache defaults
const (
	DefaultCacheSize = 512
	DefaultCacheTTL  = 5 * time.Minute
)

// MetadataCache keeps table metadata between loads in the same process,
// keyed by catalog.schema.table. Entries expire after the TTL.
type MetadataCache struct {
	lru *expirable.LRU[string, *TableMetadata]
}

// NewMetadataCache creates a cache. Non-positive arguments select the
// defaults.
func NewMetadataCache(size int, ttl time.Duration) *MetadataCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MetadataCache{lru: expirable.NewLRU[string, *TableMetadata](size, nil, ttl)}
}

// Get returns the cached metadata of a table
func (c *MetadataCache) Get(ref TableRef) (*TableMetadata, bool) {
	return c.lru.Get(ref.Key())
}

// Add stores the metadata of a table
func (c *MetadataCache) Add(md *TableMetadata) {
	c.lru.Add(md.Ref.Key(), md)
}

// Remove drops a table from the cache
func (c *MetadataCache) Remove(ref TableRef) {
	c.lru.Remove(ref.Key())
}

// Purge empties the cache
func (c *MetadataCache) Purge() {
	c.lru.Purge()
}

// Len returns the number of cached tables
func (c *MetadataCache) Len() int {
	return c.lru.Len()
}
