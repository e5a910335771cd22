// Package dedupe tracks record ids already seen during an ingest run.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records seen ids so each record is accepted at most once.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a record whose write failed can be accepted again.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

const unbounded = -1

// inMemoryDeduper keeps ids in a map. In bounded mode a ring of insertion
// slots evicts the oldest id once maxSize ids are held.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]int // id -> ring slot, or unbounded
	ring    []string
	next    int
	maxSize int
}

// NewInMemoryDeduper creates a deduper. Without WithMaxSize it never evicts.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{}
	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[string]int)
	if d.maxSize > 0 {
		d.ring = make([]string, d.maxSize)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}

	if d.maxSize <= 0 {
		d.seen[id] = unbounded
		return false
	}

	slot := d.next
	if old := d.ring[slot]; d.isOccupied(old, slot) {
		delete(d.seen, old)
	}
	d.ring[slot] = id
	d.seen[id] = slot
	d.next = (slot + 1) % d.maxSize
	return false
}

// isOccupied reports whether slot still holds id; a free slot and an empty
// string id both read as "" in the ring.
func (d *inMemoryDeduper) isOccupied(id string, slot int) bool {
	s, ok := d.seen[id]
	return ok && s == slot
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot, ok := d.seen[id]
	if !ok {
		return
	}
	delete(d.seen, id)
	if slot != unbounded {
		d.ring[slot] = ""
	}
}

// Size returns the number of ids currently held.
func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
