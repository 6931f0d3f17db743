package skiplist

import (
	"cmp"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/aalhour/concurrentskiplist/internal/logging"
	"github.com/aalhour/concurrentskiplist/internal/metrics"
	"github.com/aalhour/concurrentskiplist/internal/oracle"
	"github.com/aalhour/concurrentskiplist/internal/reclaim"
)

// indexedNode is a lockNode augmented with a per-edge span count: span[i] is
// the number of positions, in sorted order, from this node to its level-i
// successor. Spans are only correct immediately after a ComputeIndices call
// made with no concurrent mutation in flight; Insert and Remove never touch
// them, so any mutation after the last ComputeIndices leaves spans stale
// until it is called again (spec §4.9: span maintenance is not
// incremental).
//
// Reference: original_source/implementation/indexable_lock_skiplist.hpp
// Node (adds a Length *length array to the lock-based node).
type indexedNode[K any, V any] struct {
	key   bound[K]
	value V
	next  []*indexedNode[K, V]
	span  []int

	mu           sync.Mutex
	beingDeleted atomic.Bool
	fullyLinked  atomic.Bool
}

func (n *indexedNode[K, V]) height() int { return len(n.next) }

// Indexed is a fine-grained lock-based concurrent ordered map (identical
// insert/remove protocol to Lock) augmented with span counts that enable
// O(log n) Rank and Select once ComputeIndices has been run to quiescence.
//
// Reference: original_source/implementation/indexable_lock_skiplist.hpp.
type Indexed[K any, V any] struct {
	head, tail *indexedNode[K, V]
	maxHeight  int
	p          float64
	compare    Comparator[K]
	oracle     *oracle.Oracle
	reclaim    *reclaim.Queues[*indexedNode[K, V]]
	logger     logging.Logger
	metrics    *metrics.Collector
	count      atomic.Int64
}

// NewIndexed creates an empty Indexed using cmp to order keys.
func NewIndexed[K any, V any](cmp Comparator[K], opts *Options) *Indexed[K, V] {
	o := withDefaults(opts)
	ix := &Indexed[K, V]{
		maxHeight: o.MaxHeight,
		p:         o.P,
		compare:   cmp,
		oracle:    oracle.New(),
		reclaim:   reclaim.New[*indexedNode[K, V]](o.ReclaimShards),
		logger:    o.Logger,
		metrics:   o.Metrics,
	}
	ix.head = &indexedNode[K, V]{
		key:  negInf[K](),
		next: make([]*indexedNode[K, V], o.MaxHeight),
		span: make([]int, o.MaxHeight),
	}
	ix.tail = &indexedNode[K, V]{
		key:  posInf[K](),
		next: make([]*indexedNode[K, V], o.MaxHeight),
		span: make([]int, o.MaxHeight),
	}
	for i := range ix.tail.next {
		ix.tail.next[i] = ix.tail
	}
	for i := range ix.head.next {
		ix.head.next[i] = ix.tail
	}
	ix.head.fullyLinked.Store(true)
	ix.tail.fullyLinked.Store(true)
	ix.logger.Infof(logging.NSList+"indexed list created, max_height=%d p=%.3f", o.MaxHeight, o.P)
	return ix
}

// NewOrderedIndexed is a convenience constructor for cmp.Ordered key types.
func NewOrderedIndexed[K cmp.Ordered, V any](opts *Options) *Indexed[K, V] {
	return NewIndexed[K, V](OrderedComparator[K](), opts)
}

func (ix *Indexed[K, V]) find(key bound[K]) (preds, succs []*indexedNode[K, V]) {
	preds = make([]*indexedNode[K, V], ix.maxHeight)
	succs = make([]*indexedNode[K, V], ix.maxHeight)
	pred := ix.head
	for i := ix.maxHeight - 1; i >= 0; i-- {
		cur := pred.next[i]
		for cur != ix.tail && compareBound(ix.compare, cur.key, key) < 0 {
			pred = cur
			cur = pred.next[i]
		}
		preds[i] = pred
		succs[i] = cur
	}
	return preds, succs
}

// Insert adds key to the map, overwriting any existing value. The
// insert/remove protocol is identical to Lock's; see lock.go for the
// rationale. Span counts are left untouched — they become stale the moment
// this call returns, until the next ComputeIndices.
func (ix *Indexed[K, V]) Insert(key K, value V) {
	bk := realKey(key)
	for {
		preds, succs := ix.find(bk)
		if found := succs[0]; found != ix.tail && compareBound(ix.compare, found.key, bk) == 0 {
			if found.fullyLinked.Load() && !found.beingDeleted.Load() {
				found.mu.Lock()
				found.value = value
				found.mu.Unlock()
				ix.metrics.Op("insert")
				return
			}
			ix.metrics.Retry("insert")
			continue
		}

		h := ix.oracle.RandomLevel(ix.p, ix.maxHeight)
		locked := make([]*indexedNode[K, V], 0, h)
		valid := true
		for i := 0; i < h && valid; i++ {
			p, s := preds[i], succs[i]
			if i == 0 || p != preds[i-1] {
				p.mu.Lock()
				locked = append(locked, p)
			}
			valid = !p.beingDeleted.Load() && !s.beingDeleted.Load() && p.next[i] == s
		}
		if !valid {
			for _, n := range locked {
				n.mu.Unlock()
			}
			ix.metrics.Retry("insert")
			continue
		}

		n := &indexedNode[K, V]{key: bk, value: value, next: make([]*indexedNode[K, V], h), span: make([]int, h)}
		for i := 0; i < h; i++ {
			n.next[i] = succs[i]
			preds[i].next[i] = n
		}
		n.fullyLinked.Store(true)
		for _, p := range locked {
			p.mu.Unlock()
		}
		ix.count.Add(1)
		ix.metrics.Op("insert")
		return
	}
}

// Remove deletes key, reporting whether it was present at call time.
//
// Exactly one concurrent Remove call wins the CompareAndSwap on
// beingDeleted and physically unlinks the node; every other concurrent
// caller for the same key loses that CAS without touching any lock. The
// key was still present — fullyLinked, matching, not yet physically
// unlinked — when this call observed it via find, so the loser also
// reports true (spec §4.6 step 3, "present_but_already_removing"; the
// ground truth original_source/implementation/indexable_lock_skiplist.hpp
// returns true on both the being_deleted pre-check and the losing CAS).
func (ix *Indexed[K, V]) Remove(key K) bool {
	bk := realKey(key)
	var victim *indexedNode[K, V]
	marked := false

	for {
		preds, succs := ix.find(bk)
		if !marked {
			v := succs[0]
			if v == ix.tail || compareBound(ix.compare, v.key, bk) != 0 || !v.fullyLinked.Load() {
				ix.metrics.Op("remove")
				return false
			}
			if !v.beingDeleted.CompareAndSwap(false, true) {
				ix.metrics.Op("remove")
				return true
			}
			victim = v
			victim.mu.Lock()
			marked = true
		}

		h := victim.height()
		locked := make([]*indexedNode[K, V], 0, h)
		valid := true
		for i := 0; i < h && valid; i++ {
			p := preds[i]
			if i == 0 || p != preds[i-1] {
				p.mu.Lock()
				locked = append(locked, p)
			}
			valid = !p.beingDeleted.Load() && p.next[i] == victim
		}
		if !valid {
			for _, n := range locked {
				n.mu.Unlock()
			}
			ix.metrics.Retry("remove")
			continue
		}

		for i := h - 1; i >= 0; i-- {
			preds[i].next[i] = victim.next[i]
		}
		for _, n := range locked {
			n.mu.Unlock()
		}
		victim.mu.Unlock()

		ix.count.Add(-1)
		shard := ix.oracle.RandomBucket(ix.reclaim.Shards())
		ix.reclaim.Retire(shard, victim)
		ix.metrics.Op("remove")
		return true
	}
}

// Contains reports whether key is present, and its value if so.
func (ix *Indexed[K, V]) Contains(key K) (V, bool) {
	ix.metrics.Op("contains")
	bk := realKey(key)
	pred := ix.head
	for i := ix.maxHeight - 1; i >= 0; i-- {
		cur := pred.next[i]
		for cur != ix.tail && compareBound(ix.compare, cur.key, bk) < 0 {
			pred = cur
			cur = pred.next[i]
		}
		if cur != ix.tail && compareBound(ix.compare, cur.key, bk) == 0 {
			if cur.fullyLinked.Load() && !cur.beingDeleted.Load() {
				return cur.value, true
			}
			var zero V
			return zero, false
		}
	}
	var zero V
	return zero, false
}

// Keys returns every fully-linked, non-removing key in ascending order.
func (ix *Indexed[K, V]) Keys() []K {
	keys := make([]K, 0, ix.count.Load())
	for n := ix.head.next[0]; n != ix.tail; n = n.next[0] {
		if n.fullyLinked.Load() && !n.beingDeleted.Load() {
			keys = append(keys, n.key.key)
		}
	}
	return keys
}

// Len returns the number of keys currently present.
func (ix *Indexed[K, V]) Len() int {
	return int(ix.count.Load())
}

// ComputeIndices recomputes every span count from scratch by walking level
// 0 exactly once. REQUIRES no concurrent Insert/Remove: callers must
// quiesce writers first, the same precondition the original source
// documents for its compute_indices.
//
// Reference: original_source/implementation/indexable_lock_skiplist.hpp
// compute_indices.
func (ix *Indexed[K, V]) ComputeIndices() {
	last := make([]*indexedNode[K, V], ix.maxHeight)
	lastRank := make([]int, ix.maxHeight)
	for i := range last {
		last[i] = ix.head
		lastRank[i] = -1
	}

	rank := 0
	for n := ix.head.next[0]; n != ix.tail; n = n.next[0] {
		h := n.height()
		for i := 0; i < h; i++ {
			last[i].span[i] = rank - lastRank[i]
			last[i] = n
			lastRank[i] = rank
		}
		rank++
	}
	for i := 0; i < ix.maxHeight; i++ {
		last[i].span[i] = rank - lastRank[i]
	}
	ix.logger.Debugf(logging.NSIndex+"computed indices over %d keys", rank)
}

// Rank returns key's 0-based position in sorted order, and whether it is
// present. Requires a prior quiescent ComputeIndices call; otherwise the
// result reflects whatever mutations have happened since, which may not
// match the true rank (spec §4.9, §9).
//
// Reference: original_source/implementation/indexable_lock_skiplist.hpp rank.
func (ix *Indexed[K, V]) Rank(key K) (int, bool) {
	ix.metrics.Op("rank")
	bk := realKey(key)
	cur := ix.head
	rank := -1
	for i := ix.maxHeight - 1; i >= 0; i-- {
		for cur.next[i] != ix.tail && compareBound(ix.compare, cur.next[i].key, bk) <= 0 {
			rank += cur.span[i]
			cur = cur.next[i]
		}
	}
	if cur != ix.head && compareBound(ix.compare, cur.key, bk) == 0 {
		return rank, true
	}
	return 0, false
}

// Select returns the value at 0-based rank r, and whether r was in range.
// Same freshness requirement as Rank.
//
// Reference: original_source/implementation/indexable_lock_skiplist.hpp
// element_at.
func (ix *Indexed[K, V]) Select(r int) (V, bool) {
	ix.metrics.Op("select")
	if r < 0 {
		var zero V
		return zero, false
	}
	cur := ix.head
	rank := -1
	for i := ix.maxHeight - 1; i >= 0; i-- {
		for cur.next[i] != ix.tail && rank+cur.span[i] <= r {
			rank += cur.span[i]
			cur = cur.next[i]
		}
	}
	if cur != ix.head && rank == r {
		return cur.value, true
	}
	var zero V
	return zero, false
}

// IsConsistent verifies strict ascending order at every level, and, since
// span counts are present, that every edge's span matches the difference
// between its endpoints' ranks computed independently via Rank.
//
// Reference: original_source/implementation/indexable_lock_skiplist.hpp
// is_consistent (which calls compute_indices first, then checks k1 < k2 and
// k1 + span == k2 or next is tail, at every level).
func (ix *Indexed[K, V]) IsConsistent() bool {
	ix.ComputeIndices()
	for i := 0; i < ix.maxHeight; i++ {
		cur := ix.head
		for cur.next[i] != ix.tail {
			nxt := cur.next[i]
			if cur != ix.head && compareBound(ix.compare, cur.key, nxt.key) >= 0 {
				return false
			}
			cur = nxt
		}
	}
	return ix.spansConsistent()
}

// spansConsistent checks, independently of IsConsistent's traversal, that
// every node's span at every level agrees with Rank computed from the two
// endpoints it names.
func (ix *Indexed[K, V]) spansConsistent() bool {
	for i := 0; i < ix.maxHeight; i++ {
		cur := ix.head
		curRank := -1
		for cur.next[i] != ix.tail {
			nxt := cur.next[i]
			nxtRank := curRank + cur.span[i]
			if nxt != ix.tail {
				gotRank, ok := ix.rankOf(nxt)
				if !ok || gotRank != nxtRank {
					return false
				}
			}
			cur = nxt
			curRank = nxtRank
		}
	}
	return true
}

// rankOf returns n's rank using the bound key directly, bypassing the
// public Rank API's duplicate bound-construction.
func (ix *Indexed[K, V]) rankOf(n *indexedNode[K, V]) (int, bool) {
	cur := ix.head
	rank := -1
	for i := ix.maxHeight - 1; i >= 0; i-- {
		for cur.next[i] != ix.tail && compareBound(ix.compare, cur.next[i].key, n.key) <= 0 {
			rank += cur.span[i]
			cur = cur.next[i]
		}
	}
	if cur == n {
		return rank, true
	}
	return 0, false
}

// Teardown drains and discards every reclaimed node, matching the
// "freed only at teardown" contract of spec §4.10.
func (ix *Indexed[K, V]) Teardown() int {
	drained := ix.reclaim.Drain()
	for shard := 0; shard < ix.reclaim.Shards(); shard++ {
		ix.metrics.SetQueueDepth(strconv.Itoa(shard), ix.reclaim.Depth(shard))
	}
	ix.logger.Infof(logging.NSReclaim+"teardown drained %d nodes", len(drained))
	return len(drained)
}

var _ Map[int, int] = (*Indexed[int, int])(nil)
var _ IndexedMap[int, int] = (*Indexed[int, int])(nil)
