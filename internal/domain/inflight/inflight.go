// Package inflight tracks fingerprints being (or already) processed so
// that two events carrying the same file content never double-process,
// even when they land on different workers.
package inflight

import (
	"context"
	"sync"
)

const defaultMaxSize = 50000

// Registry records seen fingerprints for at-most-once processing.
type Registry interface {
	// SeenAndRecord atomically checks whether fp was seen and records
	// it if not. Returns true if fp was already seen.
	SeenAndRecord(ctx context.Context, fp string) bool

	// Unrecord forgets fp so a later event may retry it. Used when a
	// recorded fingerprint failed before reaching the store (transient
	// read error, queue backpressure).
	Unrecord(ctx context.Context, fp string)

	Size() int
}

// registry is a bounded in-memory Registry. When full, the oldest
// recorded fingerprint is evicted; eviction only ever re-opens the
// door to a store-level no-op, so a small bound is safe.
type registry struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string // insertion order for eviction
	maxSize int
}

// Option configures a Registry.
type Option func(*registry)

// WithMaxSize bounds the number of retained fingerprints.
func WithMaxSize(n int) Option {
	return func(r *registry) {
		if n > 0 {
			r.maxSize = n
		}
	}
}

// NewRegistry builds a bounded in-memory Registry.
func NewRegistry(opts ...Option) Registry {
	r := &registry{
		seen:    make(map[string]struct{}),
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *registry) SeenAndRecord(_ context.Context, fp string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.seen[fp]; ok {
		return true
	}
	if len(r.seen) >= r.maxSize {
		r.evictOldest()
	}
	r.seen[fp] = struct{}{}
	r.order = append(r.order, fp)
	return false
}

func (r *registry) Unrecord(_ context.Context, fp string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.seen[fp]; !ok {
		return
	}
	delete(r.seen, fp)
	for i, id := range r.order {
		if id == fp {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

// evictOldest drops entries from the front of the insertion order
// until one still present in the map is removed. Callers hold r.mu.
func (r *registry) evictOldest() {
	for len(r.order) > 0 {
		fp := r.order[0]
		r.order = r.order[1:]
		if _, ok := r.seen[fp]; ok {
			delete(r.seen, fp)
			return
		}
	}
}
