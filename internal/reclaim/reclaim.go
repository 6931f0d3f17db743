// Package reclaim implements the deferred-reclamation protocol shared by the
// lock-based and lock-free skip list variants: sharded retirement queues
// that defer freeing an unlinked node until the structure is torn down.
//
// Reference: original_source/implementation/lock_skiplist.hpp and
// lockfree_skiplist.hpp (_queues, _queue_locks, _num_queues = 12); adapted
// from the teacher's size-bucketed sync.Pool sharding in
// internal/mempool.Pool, generalized from "shard by requested size" to
// "shard by a uniformly random index" per spec §4.10.
//
// Rationale (unchanged from the teacher's arena/pool philosophy and from the
// spec): traversal never holds a reference across the structure's lifetime,
// so a node that has been unlinked but not yet freed can still be safely
// dereferenced by an in-flight traversal. No freeing happens until Drain is
// called, and callers must ensure no concurrent operation spans that call.
package reclaim

import "sync"

// DefaultShards is the default shard count (spec §4.10, M = 12).
const DefaultShards = 12

// Queues is a sharded set of FIFO retirement queues. Each shard is guarded
// by its own lock so that concurrent Retire calls on different shards never
// contend.
type Queues[T any] struct {
	shards []shard[T]
}

type shard[T any] struct {
	mu    sync.Mutex
	items []T
}

// New creates a Queues with the given shard count. n <= 0 falls back to
// DefaultShards.
func New[T any](n int) *Queues[T] {
	if n <= 0 {
		n = DefaultShards
	}
	return &Queues[T]{shards: make([]shard[T], n)}
}

// Shards returns the number of shards.
func (q *Queues[T]) Shards() int {
	return len(q.shards)
}

// Retire appends item to the given shard. The caller is responsible for
// picking shard, typically via the randomness oracle's RandomBucket so that
// retirement load is spread evenly without cross-shard coordination.
func (q *Queues[T]) Retire(shard int, item T) {
	s := &q.shards[shard]
	s.mu.Lock()
	s.items = append(s.items, item)
	s.mu.Unlock()
}

// Depth returns the current length of the given shard, for diagnostics and
// metrics. It is a point-in-time snapshot, not linearizable with respect to
// concurrent Retire calls.
func (q *Queues[T]) Depth(shard int) int {
	s := &q.shards[shard]
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Drain removes and returns every retired item across all shards, in shard
// order, and resets the queues to empty. Intended to be called exactly once,
// at structure teardown, after the caller has ensured no concurrent
// operation is in flight.
func (q *Queues[T]) Drain() []T {
	var all []T
	for i := range q.shards {
		s := &q.shards[i]
		s.mu.Lock()
		all = append(all, s.items...)
		s.items = nil
		s.mu.Unlock()
	}
	return all
}
