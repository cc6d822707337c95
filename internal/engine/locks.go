package engine

import "sync"

// batchLocks serializes allocation-sensitive writes per batch. Every
// path that reads remaining capacity and then writes against it takes
// the batch lock first, so two concurrent callers cannot both observe
// the same free slot.
type batchLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newBatchLocks() *batchLocks {
	return &batchLocks{locks: make(map[int64]*sync.Mutex)}
}

// acquire blocks until the lock for batchID is held and returns the
// release func. Locks are never evicted; the map grows with the number
// of distinct batches touched by the process, which is bounded by the
// batch table itself.
func (b *batchLocks) acquire(batchID int64) func() {
	b.mu.Lock()
	l, ok := b.locks[batchID]
	if !ok {
		l = &sync.Mutex{}
		b.locks[batchID] = l
	}
	b.mu.Unlock()

	l.Lock()
	return l.Unlock
}
