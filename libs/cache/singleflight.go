package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Result tells how a Get was served.
type Result int

const (
	Miss   Result = iota // this caller ran the fetch
	Hit                  // served from a fresh entry
	Shared               // joined a fetch already in flight
)

type entry[V any] struct {
	value     V
	fetchedAt time.Time
}

// SingleFlight is a TTL cache whose misses are deduplicated: concurrent callers
// for the same key wait on one fetch instead of issuing their own.
type SingleFlight[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	group   singleflight.Group
	ttl     time.Duration
	now     func() time.Time
}

func NewSingleFlight[V any](ttl time.Duration) *SingleFlight[V] {
	return &SingleFlight[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached value for key when it is younger than the TTL, otherwise
// runs fetch once for all concurrent callers. The fetch does not inherit ctx
// cancellation, so a caller giving up does not fail the others; it only stops waiting.
// Errors are not cached.
func (c *SingleFlight[V]) Get(ctx context.Context, key string, fetch func(ctx context.Context) (V, error)) (V, Result, error) {
	if v, ok := c.fresh(key); ok {
		return v, Hit, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		v, err := fetch(detached)
		if err != nil {
			return v, err
		}
		c.mu.Lock()
		c.entries[key] = entry[V]{value: v, fetchedAt: c.now()}
		c.mu.Unlock()
		return v, nil
	})

	select {
	case res := <-ch:
		result := Miss
		if res.Shared {
			result = Shared
		}
		v, _ := res.Val.(V)
		return v, result, res.Err
	case <-ctx.Done():
		var zero V
		return zero, Miss, ctx.Err()
	}
}

// Peek returns the cached value regardless of age.
func (c *SingleFlight[V]) Peek(key string) (V, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e.value, e.fetchedAt, ok
}

func (c *SingleFlight[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	c.group.Forget(key)
}

func (c *SingleFlight[V]) fresh(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.ttl <= 0 || c.now().Sub(e.fetchedAt) >= c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}
