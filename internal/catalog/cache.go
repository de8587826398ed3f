package catalog

import (
	"strings"
	"sync"
	"time"

	"github.com/openobserve/corelake/internal/model"
)

// ListCache memoizes list() results keyed by (tenant, stream, time range,
// predicate hint) so a query fanning out across many partitions doesn't
// re-scan the files table once per partition. Adapted directly from the
// teacher's pkg/lrucache.Cache (same doubly-linked LRU list, same
// single-flight-via-condvar behavior for concurrent misses on the same
// key), narrowed from a generic interface{} cache to []model.FileKey
// since that is the only value this store ever caches.
type ListCache struct {
	mu                  sync.Mutex
	cond                *sync.Cond
	maxBytes, usedBytes int
	entries             map[string]*listCacheEntry
	head, tail          *listCacheEntry
}

type listCacheEntry struct {
	key        string
	value      []model.FileKey
	expiration time.Time
	size       int
	waiting    int
	next, prev *listCacheEntry
}

// ComputeList is called on a cache miss to fetch the authoritative result.
type ComputeList func() (files []model.FileKey, ttl time.Duration, err error)

func NewListCache(maxBytes int) *ListCache {
	c := &ListCache{maxBytes: maxBytes, entries: map[string]*listCacheEntry{}}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Get returns the cached value for key, computing and storing it via
// compute on a miss. Concurrent misses on the same key block on the first
// caller's computation rather than running compute twice.
func (c *ListCache) Get(key string, compute ComputeList) ([]model.FileKey, error) {
	now := time.Now()

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok {
		for entry.expiration.IsZero() {
			entry.waiting++
			c.cond.Wait()
			entry.waiting--
		}
		if now.After(entry.expiration) {
			c.evict(entry)
		} else {
			if entry != c.head {
				c.unlink(entry)
				c.insertFront(entry)
			}
			value := entry.value
			c.mu.Unlock()
			return value, nil
		}
	}

	entry := &listCacheEntry{key: key, waiting: 1}
	c.entries[key] = entry
	c.mu.Unlock()

	value, ttl, err := compute()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		delete(c.entries, key)
		entry.expiration = now
		entry.waiting--
		if entry.waiting > 0 {
			c.cond.Broadcast()
		}
		return nil, err
	}

	size := estimateSize(value)
	entry.value = value
	entry.expiration = now.Add(ttl)
	entry.size = size
	entry.waiting--
	if entry.waiting > 0 {
		c.cond.Broadcast()
	}

	c.usedBytes += size
	c.insertFront(entry)

	candidate := c.tail
	for c.usedBytes > c.maxBytes && candidate != nil {
		prev := candidate.prev
		if candidate.waiting == 0 {
			c.evict(candidate)
		}
		candidate = prev
	}

	return value, nil
}

// Invalidate removes key, and every entry whose key extends key with a
// "|"-separated suffix, from the cache; used after a publish/tombstone
// that would otherwise be masked by a stale cached list.
func (c *ListCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, entry := range c.entries {
		if k == key || strings.HasPrefix(k, key+"|") {
			c.evict(entry)
		}
	}
}

func estimateSize(files []model.FileKey) int {
	return 128 * len(files)
}

func (c *ListCache) insertFront(e *listCacheEntry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *ListCache) unlink(e *listCacheEntry) {
	if e == c.head {
		c.head = e.next
	}
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	if e == c.tail {
		c.tail = e.prev
	}
}

func (c *ListCache) evict(e *listCacheEntry) {
	c.unlink(e)
	c.usedBytes -= e.size
	delete(c.entries, e.key)
}
