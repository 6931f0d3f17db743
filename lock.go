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

// lockNode is a node of the fine-grained lock-based skip list. Every
// exported operation on Lock requires no external synchronization: the
// node's own mutex and its two sticky flags are what make concurrent
// Insert/Remove/Contains calls safe.
//
// Reference: original_source/implementation/lock_skiplist.hpp Node.
type lockNode[K any, V any] struct {
	key   bound[K]
	value V
	next  []*lockNode[K, V]

	mu sync.Mutex

	// beingDeleted is CAS'd false->true by exactly one Remove call, which
	// thereby becomes the sole owner of physically unlinking this node.
	// Losers of the CAS report true (the key was present) and return
	// without unlinking anything.
	beingDeleted atomic.Bool

	// fullyLinked is set true only after every level of a new node has
	// been linked in. Readers must not treat a node as present until it
	// is observed true.
	fullyLinked atomic.Bool
}

func (n *lockNode[K, V]) height() int { return len(n.next) }

// Lock is a fine-grained, lock-based concurrent ordered map using
// optimistic validation: traversal is lock-free, and only the handful of
// predecessor nodes touched by an Insert or Remove are locked, each
// validated against concurrent structural change before being mutated.
//
// Reference: original_source/implementation/lock_skiplist.hpp.
type Lock[K any, V any] struct {
	head, tail *lockNode[K, V]
	maxHeight  int
	p          float64
	compare    Comparator[K]
	oracle     *oracle.Oracle
	reclaim    *reclaim.Queues[*lockNode[K, V]]
	logger     logging.Logger
	metrics    *metrics.Collector
	count      atomic.Int64
}

// NewLock creates an empty Lock using cmp to order keys.
func NewLock[K any, V any](cmp Comparator[K], opts *Options) *Lock[K, V] {
	o := withDefaults(opts)
	l := &Lock[K, V]{
		maxHeight: o.MaxHeight,
		p:         o.P,
		compare:   cmp,
		oracle:    oracle.New(),
		reclaim:   reclaim.New[*lockNode[K, V]](o.ReclaimShards),
		logger:    o.Logger,
		metrics:   o.Metrics,
	}
	l.head = &lockNode[K, V]{key: negInf[K](), next: make([]*lockNode[K, V], o.MaxHeight)}
	l.tail = &lockNode[K, V]{key: posInf[K](), next: make([]*lockNode[K, V], o.MaxHeight)}
	for i := range l.tail.next {
		l.tail.next[i] = l.tail // tail self-loop, the end-of-list guard of spec §4.3
	}
	for i := range l.head.next {
		l.head.next[i] = l.tail
	}
	l.head.fullyLinked.Store(true)
	l.tail.fullyLinked.Store(true)
	l.logger.Infof(logging.NSList+"lock list created, max_height=%d p=%.3f", o.MaxHeight, o.P)
	return l
}

// NewOrderedLock is a convenience constructor for cmp.Ordered key types.
func NewOrderedLock[K cmp.Ordered, V any](opts *Options) *Lock[K, V] {
	return NewLock[K, V](OrderedComparator[K](), opts)
}

// find walks top-down and fills preds/succs with, at every level, the
// rightmost node known not to exceed key and its immediate successor.
// Marked (beingDeleted) nodes are not skipped here: physically they are
// still linked until their remover finishes unlinking them, and find must
// still see them to link around them correctly.
func (l *Lock[K, V]) find(key bound[K]) (preds, succs []*lockNode[K, V]) {
	preds = make([]*lockNode[K, V], l.maxHeight)
	succs = make([]*lockNode[K, V], l.maxHeight)
	pred := l.head
	for i := l.maxHeight - 1; i >= 0; i-- {
		cur := pred.next[i]
		for cur != l.tail && compareBound(l.compare, cur.key, key) < 0 {
			pred = cur
			cur = pred.next[i]
		}
		preds[i] = pred
		succs[i] = cur
	}
	return preds, succs
}

// Insert adds key to the map, overwriting any existing value.
//
// A node that compares equal but is mid-removal (fullyLinked but
// beingDeleted) is treated as absent: the call retries until the remover
// finishes and a fresh node can be linked in. A duplicate key is only ever
// checked immediately before locking at level 0 — never again at higher
// levels, since by the time higher levels link in, level 0 has already
// fixed which node, if any, owns the key (spec §9 open question).
func (l *Lock[K, V]) Insert(key K, value V) {
	bk := realKey(key)
	for {
		preds, succs := l.find(bk)
		if found := succs[0]; found != l.tail && compareBound(l.compare, found.key, bk) == 0 {
			if found.fullyLinked.Load() && !found.beingDeleted.Load() {
				found.mu.Lock()
				found.value = value
				found.mu.Unlock()
				l.metrics.Op("insert")
				return
			}
			l.metrics.Retry("insert")
			continue
		}

		h := l.oracle.RandomLevel(l.p, l.maxHeight)
		locked := make([]*lockNode[K, V], 0, h)
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
			l.metrics.Retry("insert")
			continue
		}

		n := &lockNode[K, V]{key: bk, value: value, next: make([]*lockNode[K, V], h)}
		for i := 0; i < h; i++ {
			n.next[i] = succs[i]
			preds[i].next[i] = n
		}
		n.fullyLinked.Store(true)
		for _, p := range locked {
			p.mu.Unlock()
		}
		l.count.Add(1)
		l.metrics.Op("insert")
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
// ground truth original_source/implementation/lock_skiplist.hpp returns
// true on both the being_deleted pre-check and the losing CAS).
func (l *Lock[K, V]) Remove(key K) bool {
	bk := realKey(key)
	var victim *lockNode[K, V]
	marked := false

	for {
		preds, succs := l.find(bk)
		if !marked {
			v := succs[0]
			if v == l.tail || compareBound(l.compare, v.key, bk) != 0 || !v.fullyLinked.Load() {
				l.metrics.Op("remove")
				return false
			}
			if !v.beingDeleted.CompareAndSwap(false, true) {
				l.metrics.Op("remove")
				return true
			}
			victim = v
			victim.mu.Lock()
			marked = true
		}

		h := victim.height()
		locked := make([]*lockNode[K, V], 0, h)
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
			l.metrics.Retry("remove")
			continue
		}

		for i := h - 1; i >= 0; i-- {
			preds[i].next[i] = victim.next[i]
		}
		for _, n := range locked {
			n.mu.Unlock()
		}
		victim.mu.Unlock()

		l.count.Add(-1)
		shard := l.oracle.RandomBucket(l.reclaim.Shards())
		l.reclaim.Retire(shard, victim)
		l.metrics.Op("remove")
		l.logger.Debugf(logging.NSReclaim+"retired node to shard %d", shard)
		return true
	}
}

// Contains reports whether key is present, and its value if so.
//
// The returned value is read without holding the node's lock, the same
// benign race the original C++ source accepts (spec §9 Non-goal: node
// payload immutability). A concurrent Insert overwriting the same key's
// value may race with this read.
func (l *Lock[K, V]) Contains(key K) (V, bool) {
	l.metrics.Op("contains")
	bk := realKey(key)
	pred := l.head
	for i := l.maxHeight - 1; i >= 0; i-- {
		cur := pred.next[i]
		for cur != l.tail && compareBound(l.compare, cur.key, bk) < 0 {
			pred = cur
			cur = pred.next[i]
		}
		if cur != l.tail && compareBound(l.compare, cur.key, bk) == 0 {
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
// Like the rest of the map, it gives a best-effort snapshot unless callers
// ensure quiescence.
func (l *Lock[K, V]) Keys() []K {
	keys := make([]K, 0, l.count.Load())
	for n := l.head.next[0]; n != l.tail; n = n.next[0] {
		if n.fullyLinked.Load() && !n.beingDeleted.Load() {
			keys = append(keys, n.key.key)
		}
	}
	return keys
}

// Len returns the number of keys currently present.
func (l *Lock[K, V]) Len() int {
	return int(l.count.Load())
}

// IsConsistent verifies strict ascending order at every level, from head to
// tail, with no dangling references.
//
// Reference: original_source/implementation/lock_skiplist.hpp is_consistent.
func (l *Lock[K, V]) IsConsistent() bool {
	for i := 0; i < l.maxHeight; i++ {
		cur := l.head
		for cur.next[i] != l.tail {
			nxt := cur.next[i]
			if cur != l.head && compareBound(l.compare, cur.key, nxt.key) >= 0 {
				return false
			}
			cur = nxt
		}
	}
	return true
}

// Teardown drains and discards every reclaimed node. It must be called
// only once no concurrent Insert/Remove is in flight; it exists so callers
// (and tests) can assert on how much was retired without leaking it
// forever, matching the "freed only at teardown" contract of spec §4.10.
func (l *Lock[K, V]) Teardown() int {
	drained := l.reclaim.Drain()
	for shard := 0; shard < l.reclaim.Shards(); shard++ {
		l.metrics.SetQueueDepth(strconv.Itoa(shard), l.reclaim.Depth(shard))
	}
	l.logger.Infof(logging.NSReclaim+"teardown drained %d nodes", len(drained))
	return len(drained)
}

var _ Map[int, int] = (*Lock[int, int])(nil)
