package loader

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/singleflight"
)

// FailurePolicy decides which failed loads a Cache remembers.
type FailurePolicy string

// Failure policies.
const (
	// PolicyPermanent caches failures that a retry cannot fix (missing files,
	// parse failures, 404s) and retries transient ones on the next request.
	PolicyPermanent FailurePolicy = "permanent"
	// PolicyNone never caches failures.
	PolicyNone FailurePolicy = "none"
	// PolicyAll caches every failure for the process lifetime.
	PolicyAll FailurePolicy = "all"
)

// ParseFailurePolicy validates a configured policy name.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch p := FailurePolicy(s); p {
	case PolicyPermanent, PolicyNone, PolicyAll:
		return p, nil
	case "":
		return PolicyPermanent, nil
	default:
		return "", eris.Errorf("loader: unknown failure policy %q", s)
	}
}

// Cache is a concurrency-safe read-through cache. Each key is loaded at most
// once at a time and, once stored, never rewritten.
type Cache[T any] struct {
	name    string
	policy  FailurePolicy
	mu      sync.RWMutex
	entries map[string]*cacheEntry[T]
	group   singleflight.Group
	hits    atomic.Int64
	misses  atomic.Int64
}

type cacheEntry[T any] struct {
	value     T
	err       error
	createdAt time.Time
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Name     string   `json:"name"`
	Entries  int      `json:"entries"`
	Failures int      `json:"failures"`
	Keys     []string `json:"keys"`
	Hits     int64    `json:"hits"`
	Misses   int64    `json:"misses"`
	HitRate  float64  `json:"hit_rate"`
}

// NewCache creates an empty cache.
func NewCache[T any](name string, policy FailurePolicy) *Cache[T] {
	if policy == "" {
		policy = PolicyPermanent
	}
	return &Cache[T]{
		name:    name,
		policy:  policy,
		entries: make(map[string]*cacheEntry[T]),
	}
}

// Get returns the cached outcome for key, calling load on a miss.
func (c *Cache[T]) Get(ctx context.Context, key string, load func(ctx context.Context) (T, error)) (T, error) {
	if e, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return e.value, e.err
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(key, func() (any, error) {
		// A concurrent caller may have stored the key while we waited.
		if e, ok := c.lookup(key); ok {
			return e.value, e.err
		}
		value, err := load(ctx)
		if c.remember(err) {
			c.mu.Lock()
			if _, exists := c.entries[key]; !exists {
				c.entries[key] = &cacheEntry[T]{value: value, err: err, createdAt: time.Now()}
			}
			c.mu.Unlock()
		}
		return value, err
	})

	value, _ := v.(T)
	return value, err
}

func (c *Cache[T]) lookup(key string) (*cacheEntry[T], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *Cache[T]) remember(err error) bool {
	if err == nil {
		return true
	}
	switch c.policy {
	case PolicyAll:
		return true
	case PolicyNone:
		return false
	default:
		le, ok := AsLoadError(err)
		return ok && le.Permanent()
	}
}

// Len returns the number of stored entries, failures included.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns cache performance statistics.
func (c *Cache[T]) Stats() CacheStats {
	c.mu.RLock()
	keys := make([]string, 0, len(c.entries))
	var failures int
	for k, e := range c.entries {
		keys = append(keys, k)
		if e.err != nil {
			failures++
		}
	}
	c.mu.RUnlock()
	sort.Strings(keys)

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		Name:     c.name,
		Entries:  len(keys),
		Failures: failures,
		Keys:     keys,
		Hits:     hits,
		Misses:   misses,
		HitRate:  hitRate,
	}
}
