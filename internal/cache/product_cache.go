package cache

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/talkincode/shopsync/internal/domain"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultProductTTL   = 60 * time.Second
	DefaultFetchTimeout = 10 * time.Second
)

// ProductListCache holds the single product list entry served by the catalog endpoint.
// Invalidate bumps a generation counter and a list computed under an older
// generation is never stored.
type ProductListCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	timeout  time.Duration
	now      func() time.Time
	value    []domain.Product
	storedAt time.Time
	valid    bool
	gen      uint64

	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
}

// Stats reports cache effectiveness
type Stats struct {
	Hits       int64  `json:"hits"`
	Misses     int64  `json:"misses"`
	Generation uint64 `json:"generation"`
}

func NewProductListCache(ttl time.Duration) *ProductListCache {
	if ttl <= 0 {
		ttl = DefaultProductTTL
	}
	return &ProductListCache{ttl: ttl, timeout: DefaultFetchTimeout, now: time.Now}
}

// WithFetchTimeout bounds the shared fetch of a miss
func (c *ProductListCache) WithFetchTimeout(d time.Duration) *ProductListCache {
	if d > 0 {
		c.mu.Lock()
		c.timeout = d
		c.mu.Unlock()
	}
	return c
}

// WithClock replaces the time source, used by tests
func (c *ProductListCache) WithClock(now func() time.Time) *ProductListCache {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	return c
}

func (c *ProductListCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the cached list while its age is below the ttl
func (c *ProductListCache) Get() ([]domain.Product, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid || c.now().Sub(c.storedAt) >= c.ttl {
		return nil, false
	}
	return c.value, true
}

// Generation returns the current invalidation generation
func (c *ProductListCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Set stores list if no invalidation happened since gen was read
func (c *ProductListCache) Set(list []domain.Product, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.value = list
	c.storedAt = c.now()
	c.valid = true
	return true
}

// Invalidate drops the entry. Product mutations call it before they respond.
func (c *ProductListCache) Invalidate() {
	c.mu.Lock()
	c.gen++
	c.value = nil
	c.valid = false
	c.mu.Unlock()
}

// Load returns the cached list or reads it through fetch. Concurrent misses
// of the same generation share one fetch, which runs detached from the
// cancellation of ctx and is bounded by the fetch timeout instead. The bool is
// true on a cache hit.
func (c *ProductListCache) Load(ctx context.Context, fetch func(ctx context.Context) ([]domain.Product, error)) ([]domain.Product, bool, error) {
	if v, ok := c.Get(); ok {
		c.hits.Add(1)
		return v, true, nil
	}
	c.misses.Add(1)
	gen := c.Generation()
	c.mu.Lock()
	timeout := c.timeout
	c.mu.Unlock()
	v, err, _ := c.group.Do(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		list, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.Set(list, gen)
		return list, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]domain.Product), false, nil
}

func (c *ProductListCache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Generation: c.Generation()}
}
