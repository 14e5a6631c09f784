// Package dedupe remembers idempotency keys of applied save batches so a
// double-submitted batch is applied at most once.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Deduper records seen batch keys.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets a key so the batch can be retried. Used when a batch
	// was recorded but the store rejected it.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// BatchKey scopes a client supplied idempotency key to an account.
func BatchKey(account, id string) string {
	return account + "\x00" + id
}

type stamp struct {
	at  time.Time
	seq uint64
}

type slot struct {
	key string
	seq uint64
}

// inMemoryDeduper keeps keys in a map and, when bounded, a ring of insertion
// order used to evict the oldest key once maxSize is reached.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]stamp
	ring    []slot
	next    int // ring index the next key is written to
	seq     uint64
	maxSize int // 0 or negative = unbounded
	ttl     time.Duration
	now     func() time.Time
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 10_000,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[string]stamp)
	if d.maxSize > 0 {
		d.ring = make([]slot, d.maxSize)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if st, ok := d.seen[key]; ok {
		if d.ttl <= 0 || now.Sub(st.at) < d.ttl {
			return true
		}
		d.forget(key)
	}

	d.seq++
	if d.maxSize > 0 {
		old := d.ring[d.next]
		if st, ok := d.seen[old.key]; ok && old.seq != 0 && st.seq == old.seq {
			d.forget(old.key)
		}
		d.ring[d.next] = slot{key: key, seq: d.seq}
		d.next = (d.next + 1) % d.maxSize
	}
	d.seen[key] = stamp{at: now, seq: d.seq}
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		d.forget(key)
	}
}

// forget must be called with d.mu held and key present.
func (d *inMemoryDeduper) forget(key string) {
	delete(d.seen, key)
	d.size.Add(-1)
}

// Size returns the current number of remembered keys.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
