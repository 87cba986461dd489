// Package cache provides the in-process TTL cache serving the read surface.
package cache

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry struct {
	value      interface{}
	expiration time.Time
}

// Cache holds read results for a fixed TTL and coalesces concurrent loads of
// the same key. A nil *Cache is valid and caches nothing.
type Cache struct {
	ttl       time.Duration
	data      sync.Map
	group     singleflight.Group
	itemCount int32
}

func New(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl}
}

// GetOrCreate returns the cached value for key, loading it with fn on a miss
// or after expiry. Load errors are not cached.
func (c *Cache) GetOrCreate(key string, fn func() (interface{}, error)) (interface{}, error) {
	if c == nil {
		return fn()
	}
	if v, ok := c.data.Load(key); ok {
		e := v.(entry)
		if e.expiration.After(time.Now()) {
			return e.value, nil
		}
		c.cleanUp()
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if v, ok := c.data.Load(key); ok {
			e := v.(entry)
			if e.expiration.After(time.Now()) {
				return e.value, nil
			}
		}

		value, err := fn()
		if err != nil {
			return nil, err
		}
		c.data.Store(key, entry{value: value, expiration: time.Now().Add(c.ttl)})
		atomic.AddInt32(&c.itemCount, 1)
		return value, nil
	})
	return v, err
}

// Invalidate drops every key with the given prefix. An empty prefix flushes
// the whole cache.
func (c *Cache) Invalidate(prefix string) {
	if c == nil {
		return
	}
	c.data.Range(func(key, _ interface{}) bool {
		if strings.HasPrefix(key.(string), prefix) {
			c.data.Delete(key)
			atomic.AddInt32(&c.itemCount, -1)
		}
		return true
	})
}

func (c *Cache) cleanUp() {
	if atomic.LoadInt32(&c.itemCount) == 0 {
		return
	}
	now := time.Now()
	c.data.Range(func(key, value interface{}) bool {
		if value.(entry).expiration.Before(now) {
			c.data.Delete(key)
			atomic.AddInt32(&c.itemCount, -1)
		}
		return true
	})
}
