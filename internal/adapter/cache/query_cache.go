package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"time"

	"ragalert/internal/domain"
	"ragalert/internal/port"
)

// QueryCache is an LRU+TTL cache of retrieval results. Entries remember the
// index generation they were computed against; Invalidate bumps it.
type QueryCache struct {
	mu       sync.RWMutex
	entries  map[string]*cacheEntry
	order    []string
	maxSize  int
	ttl      time.Duration
	indexGen uint64
	now      func() time.Time
}

type cacheEntry struct {
	results   []domain.ScoredSegment
	timestamp time.Time
	indexGen  uint64
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(scope, query string, topK int) string {
	h := sha256.New()
	h.Write([]byte(scope))
	h.Write([]byte{0})
	h.Write([]byte(query))
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(topK))
	h.Write(k[:])
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func (c *QueryCache) Get(scope, query string, topK int) ([]domain.ScoredSegment, bool) {
	key := cacheKey(scope, query, topK)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}

	if c.now().Sub(entry.timestamp) > c.ttl || entry.indexGen != c.indexGen {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return nil, false
	}

	c.moveToEnd(key)
	return entry.results, true
}

func (c *QueryCache) Put(scope, query string, topK int, results []domain.ScoredSegment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(c.indexGen, scope, query, topK, results)
}

// Generation returns the current index generation.
func (c *QueryCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexGen
}

// PutAt stores results computed against generation gen. They are dropped
// if the cache was invalidated since, and PutAt reports whether they were
// stored.
func (c *QueryCache) PutAt(gen uint64, scope, query string, topK int, results []domain.ScoredSegment) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.indexGen {
		return false
	}
	c.put(gen, scope, query, topK, results)
	return true
}

func (c *QueryCache) put(gen uint64, scope, query string, topK int, results []domain.ScoredSegment) {
	key := cacheKey(scope, query, topK)
	entry := &cacheEntry{
		results:   results,
		timestamp: c.now(),
		indexGen:  gen,
	}

	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = entry
	c.order = append(c.order, key)
}

// Invalidate drops every entry. Call it whenever a new index is swapped in.
func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
	c.indexGen++
}

func (c *QueryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *QueryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *QueryCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *QueryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// CachedRetriever serves repeated retrievals from a QueryCache. Errors are
// never cached, nor are results of a retrieval that overlapped an index swap.
type CachedRetriever struct {
	retriever port.Retriever
	cache     *QueryCache
}

func NewCachedRetriever(retriever port.Retriever, cache *QueryCache) *CachedRetriever {
	return &CachedRetriever{
		retriever: retriever,
		cache:     cache,
	}
}

func (r *CachedRetriever) Retrieve(ctx context.Context, query, scope string, k int) ([]domain.ScoredSegment, error) {
	if results, hit := r.cache.Get(scope, query, k); hit {
		return results, nil
	}

	gen := r.cache.Generation()
	results, err := r.retriever.Retrieve(ctx, query, scope, k)
	if err != nil {
		return nil, err
	}

	r.cache.PutAt(gen, scope, query, k, results)
	return results, nil
}
