// Package ringbuf provides a fixed-size, overwrite-on-full ring buffer.
// The API keeps its most recent run reports in one.
package ringbuf

import "sync"

// Ring is a thread-safe circular buffer. Capacity is rounded up to a power
// of two for bitwise modulo. Pushing into a full ring evicts the oldest item.
type Ring[T any] struct {
	mu      sync.RWMutex
	buf     []T
	mask    uint64
	head    uint64 // total pushes
	evicted uint64
}

// New creates a ring. capacity is rounded up to the next power of two.
// Minimum capacity is 2.
func New[T any](capacity int) *Ring[T] {
	n := nextPow2(capacity)
	if n < 2 {
		n = 2
	}
	return &Ring[T]{
		buf:  make([]T, n),
		mask: uint64(n - 1),
	}
}

// Push appends v, overwriting the oldest item when the ring is full.
func (r *Ring[T]) Push(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.head >= uint64(len(r.buf)) {
		r.evicted++
	}
	r.buf[r.head&r.mask] = v
	r.head++
}

// Snapshot returns the buffered items, oldest first.
func (r *Ring[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := r.len()
	out := make([]T, 0, n)
	for i := r.head - uint64(n); i < r.head; i++ {
		out = append(out, r.buf[i&r.mask])
	}
	return out
}

// Find returns the newest item matching fn.
func (r *Ring[T]) Find(fn func(T) bool) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := uint64(r.len())
	for i := r.head; i > r.head-n; i-- {
		if v := r.buf[(i-1)&r.mask]; fn(v) {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Len returns the current number of items in the buffer.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.len()
}

func (r *Ring[T]) len() int {
	if r.head > uint64(len(r.buf)) {
		return len(r.buf)
	}
	return int(r.head)
}

// Cap returns the buffer capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Evicted returns how many items were overwritten.
func (r *Ring[T]) Evicted() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.evicted
}

// nextPow2 returns the smallest power of 2 >= n.
func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
