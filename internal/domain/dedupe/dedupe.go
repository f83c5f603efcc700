// Package dedupe tracks import request ids so a retried request maps back to
// the job it already created.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records request ids and the job that owns each of them.
type Deduper interface {
	// SeenAndRecord atomically records id as owned by owner if id is new.
	// When id was seen before it returns the recorded owner and true.
	SeenAndRecord(ctx context.Context, id, owner string) (string, bool)

	// Unrecord forgets id so it can be retried. Used when a job was
	// recorded but could not be enqueued.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

type record struct {
	id    string
	owner string
}

// inMemoryDeduper keeps ids in insertion order and evicts the oldest when
// bounded. maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id, owner string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[id]; ok {
		return el.Value.(record).owner, true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		d.evictOldest()
	}
	d.seen[id] = d.order.PushBack(record{id: id, owner: owner})
	d.size.Add(1)
	return owner, false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[id]; ok {
		d.order.Remove(el)
		delete(d.seen, id)
		d.size.Add(-1)
	}
}

// evictOldest must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	front := d.order.Front()
	if front == nil {
		return
	}
	d.order.Remove(front)
	delete(d.seen, front.Value.(record).id)
	d.size.Add(-1)
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
