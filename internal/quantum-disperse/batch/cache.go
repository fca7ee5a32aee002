package batch

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultCacheSize = 256

type cacheKey struct {
	hash     uint64
	decimals uint8
}

type cacheEntry struct {
	text  string
	batch ParsedBatch
}

// Cache memoises Parse for repeated (text, decimals) pairs, e.g. a preview
// endpoint hit on every keystroke. Safe for concurrent use.
type Cache struct {
	entries *lru.Cache[cacheKey, cacheEntry]
}

func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[cacheKey, cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("batch: new parse cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// Parse returns a copy of the cached batch or parses and stores a new one.
func (c *Cache) Parse(text string, decimals uint8) ParsedBatch {
	key := cacheKey{hash: xxhash.Sum64String(text), decimals: decimals}

	// full text compare guards against hash collisions
	if hit, ok := c.entries.Get(key); ok && hit.text == text {
		return hit.batch.Clone()
	}

	parsed := Parse(text, decimals)
	c.entries.Add(key, cacheEntry{text: text, batch: parsed.Clone()})
	return parsed
}

func (c *Cache) Len() int { return c.entries.Len() }
