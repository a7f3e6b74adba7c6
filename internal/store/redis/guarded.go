package redis

import (
	"context"
	"errors"
	"log"
	"sync"

	"trading-backtestv1/internal/model"
)

// pendingSet is a cache write deferred while the breaker was open.
type pendingSet struct {
	key  string
	bars []model.Bar
}

// GuardedCache wraps a Cache with a circuit breaker. Reads fail fast as
// misses while the breaker is open; writes are queued and replayed once it
// closes again.
type GuardedCache struct {
	cache *Cache
	cb    *CircuitBreaker

	mu      sync.Mutex
	pending []pendingSet
	maxPend int

	// OnFlush, if set, is called after queued writes are replayed.
	OnFlush func(count int)
}

// NewGuardedCache wraps c with cb. maxPending bounds the write queue; the
// oldest entry is dropped when it is full.
func NewGuardedCache(c *Cache, cb *CircuitBreaker, maxPending int) *GuardedCache {
	if maxPending <= 0 {
		maxPending = 256
	}
	g := &GuardedCache{cache: c, cb: cb, maxPend: maxPending}

	prev := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prev != nil {
			prev(from, to)
		}
		log.Printf("[redis] circuit breaker %s -> %s", from, to)
		if to == StateClosed {
			go g.flush()
		}
	}
	return g
}

// GetBars reads through the breaker. An open breaker reports a miss with
// ErrCircuitOpen.
func (g *GuardedCache) GetBars(ctx context.Context, key string) ([]model.Bar, bool, error) {
	var (
		bars []model.Bar
		ok   bool
	)
	err := g.cb.Execute(func() error {
		var err error
		bars, ok, err = g.cache.GetBars(ctx, key)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return bars, ok, nil
}

// SetBars writes through the breaker, queueing the write if it is open.
func (g *GuardedCache) SetBars(ctx context.Context, key string, bars []model.Bar) error {
	err := g.cb.Execute(func() error {
		return g.cache.SetBars(ctx, key, bars)
	})
	if errors.Is(err, ErrCircuitOpen) {
		g.enqueue(pendingSet{key: key, bars: bars})
		return nil
	}
	return err
}

// Pending returns the number of queued writes.
func (g *GuardedCache) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

func (g *GuardedCache) enqueue(p pendingSet) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.pending) >= g.maxPend {
		g.pending = g.pending[1:]
	}
	g.pending = append(g.pending, p)
}

func (g *GuardedCache) flush() {
	g.mu.Lock()
	queued := g.pending
	g.pending = nil
	g.mu.Unlock()

	if len(queued) == 0 {
		return
	}
	ctx := context.Background()
	written := 0
	for _, p := range queued {
		if err := g.cache.SetBars(ctx, p.key, p.bars); err != nil {
			log.Printf("[redis] replay of %s failed: %v", p.key, err)
			continue
		}
		written++
	}
	log.Printf("[redis] replayed %d/%d queued cache writes", written, len(queued))
	if g.OnFlush != nil {
		g.OnFlush(written)
	}
}

// Close closes the underlying cache.
func (g *GuardedCache) Close() error {
	return g.cache.Close()
}
