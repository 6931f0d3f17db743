package skiplist

import (
	"cmp"
	"sync/atomic"

	"github.com/aalhour/concurrentskiplist/internal/logging"
	"github.com/aalhour/concurrentskiplist/internal/metrics"
	"github.com/aalhour/concurrentskiplist/internal/oracle"
	"github.com/aalhour/concurrentskiplist/internal/reclaim"
)

// lfNode is a node of the lock-free skip list. Deletion is represented the
// way Harris's lock-free list represents it: marking the low bit of a
// node's own outgoing pointer at a level marks the node itself as deleted
// at that level, rather than setting a separate flag. value is stored
// behind an atomic.Pointer so a concurrent Insert duplicate-overwrite can
// never tear a multi-word V.
//
// Reference: original_source/implementation/lockfree_skiplist.hpp Node,
// MarkPtr.
type lfNode[K any, V any] struct {
	key  bound[K]
	val  atomic.Pointer[V]
	next []*MarkableRef[lfNode[K, V]]
}

func (n *lfNode[K, V]) height() int { return len(n.next) }

func (n *lfNode[K, V]) loadValue() V {
	p := n.val.Load()
	if p == nil {
		var zero V
		return zero
	}
	return *p
}

func (n *lfNode[K, V]) storeValue(v V) {
	n.val.Store(&v)
}

// LockFree is a lock-free concurrent ordered map using marked forward
// pointers and compare-and-swap, with no mutex anywhere on the hot path.
//
// Reference: original_source/implementation/lockfree_skiplist.hpp, and the
// CAS-snip-on-traversal idiom of
// _examples/gaarutyunov-skiptrie-go/skiptrie/skiptrie.go listSearch.
type LockFree[K any, V any] struct {
	head, tail *lfNode[K, V]
	maxHeight  int
	p          float64
	compare    Comparator[K]
	oracle     *oracle.Oracle
	reclaim    *reclaim.Queues[*lfNode[K, V]]
	logger     logging.Logger
	metrics    *metrics.Collector
	count      atomic.Int64
}

// NewLockFree creates an empty LockFree using cmp to order keys.
func NewLockFree[K any, V any](cmp Comparator[K], opts *Options) *LockFree[K, V] {
	o := withDefaults(opts)
	f := &LockFree[K, V]{
		maxHeight: o.MaxHeight,
		p:         o.P,
		compare:   cmp,
		oracle:    oracle.New(),
		reclaim:   reclaim.New[*lfNode[K, V]](o.ReclaimShards),
		logger:    o.Logger,
		metrics:   o.Metrics,
	}
	f.head = &lfNode[K, V]{key: negInf[K](), next: make([]*MarkableRef[lfNode[K, V]], o.MaxHeight)}
	f.tail = &lfNode[K, V]{key: posInf[K](), next: make([]*MarkableRef[lfNode[K, V]], o.MaxHeight)}
	for i := range f.tail.next {
		f.tail.next[i] = NewMarkableRef[lfNode[K, V]](f.tail, false)
	}
	for i := range f.head.next {
		f.head.next[i] = NewMarkableRef[lfNode[K, V]](f.tail, false)
	}
	f.logger.Infof(logging.NSList+"lock-free list created, max_height=%d p=%.3f", o.MaxHeight, o.P)
	return f
}

// NewOrderedLockFree is a convenience constructor for cmp.Ordered key types.
func NewOrderedLockFree[K cmp.Ordered, V any](opts *Options) *LockFree[K, V] {
	return NewLockFree[K, V](OrderedComparator[K](), opts)
}

// find walks top-down, physically snipping any marked node it encounters
// via CAS. A failed snip CAS means some other goroutine changed the
// predecessor's pointer first, so this call restarts entirely from head,
// matching the "retry: ... goto retry" control flow of the original
// get_update_nodes.
func (f *LockFree[K, V]) find(key bound[K]) (preds, succs []*lfNode[K, V]) {
	for {
		preds = make([]*lfNode[K, V], f.maxHeight)
		succs = make([]*lfNode[K, V], f.maxHeight)
		pred := f.head
		restart := false

		for i := f.maxHeight - 1; i >= 0 && !restart; i-- {
			cur, _ := pred.next[i].Load()
			for cur != f.tail {
				next, marked := cur.next[i].Load()
				if marked {
					if !pred.next[i].CompareAndSwap(cur, false, next, false) {
						restart = true
						f.metrics.Retry("traverse")
						break
					}
					cur = next
					continue
				}
				if compareBound(f.compare, cur.key, key) < 0 {
					pred = cur
					cur = next
					continue
				}
				break
			}
			if restart {
				break
			}
			preds[i] = pred
			succs[i] = cur
		}

		if restart {
			continue
		}
		return preds, succs
	}
}

// Insert adds key to the map, overwriting any existing value.
//
// Level 0 is linked first via a single CAS on the predecessor's forward
// pointer; a failed CAS means the structure changed underneath this call,
// so it re-traverses and retries, re-checking for a duplicate each time.
// Once level 0 succeeds, levels 1..h-1 are linked the same way but without
// re-checking for a duplicate, since level 0 already fixed which node owns
// the key.
func (f *LockFree[K, V]) Insert(key K, value V) {
	bk := realKey(key)

	for {
		preds, succs := f.find(bk)
		if found := succs[0]; found != f.tail && compareBound(f.compare, found.key, bk) == 0 {
			found.storeValue(value)
			f.metrics.Op("insert")
			return
		}

		h := f.oracle.RandomLevel(f.p, f.maxHeight)
		n := &lfNode[K, V]{key: bk, next: make([]*MarkableRef[lfNode[K, V]], h)}
		n.storeValue(value)
		for i := 0; i < h; i++ {
			n.next[i] = NewMarkableRef[lfNode[K, V]](nil, false)
		}
		n.next[0].Store(succs[0], false)

		if !preds[0].next[0].CompareAndSwap(succs[0], false, n, false) {
			f.metrics.Retry("insert")
			continue
		}

		for i := 1; i < h; i++ {
			for {
				preds, succs = f.find(bk)
				n.next[i].Store(succs[i], false)
				if preds[i].next[i].CompareAndSwap(succs[i], false, n, false) {
					break
				}
				f.metrics.Retry("insert")
			}
		}

		f.count.Add(1)
		f.metrics.Op("insert")
		return
	}
}

// Remove deletes key, reporting whether it was present when this call's
// traversal observed it.
//
// Two concurrent Remove calls racing on the same key both find the same
// live node and both report true: the node is guaranteed to end up marked
// regardless of which call's compare-and-swap wins at level 0. Only the
// winner of the level-0 mark — the owner — retires the node's memory,
// since it is the one call guaranteed to have observed the unmarked-to-marked
// transition (spec §8 lock-free mark-interleaving scenario).
func (f *LockFree[K, V]) Remove(key K) bool {
	bk := realKey(key)
	_, succs := f.find(bk)
	victim := succs[0]
	if victim == f.tail || compareBound(f.compare, victim.key, bk) != 0 {
		f.metrics.Op("remove")
		return false
	}

	owner := false
	for i := victim.height() - 1; i >= 0; i-- {
		for {
			next, marked := victim.next[i].Load()
			if marked {
				break
			}
			if victim.next[i].CompareAndSwap(next, false, next, true) {
				if i == 0 {
					owner = true
				}
				break
			}
			f.metrics.Retry("remove")
		}
	}

	f.find(bk) // forces the lazy physical snip of the now fully-marked node

	if owner {
		f.count.Add(-1)
		shard := f.oracle.RandomBucket(f.reclaim.Shards())
		f.reclaim.Retire(shard, victim)
		f.logger.Debugf(logging.NSReclaim+"retired node to shard %d", shard)
	}
	f.metrics.Op("remove")
	return true
}

// Contains reports whether key is present, and its value if so.
//
// Presence is decided solely by what the traversal observed: a node the
// traversal selected as the matching candidate is reported present even if
// it is marked deleted an instant later, by a Remove racing this call.
// The traversal already skips nodes it observes marked while descending;
// it never rechecks a candidate's mark after selecting it, matching
// original_source/implementation/lockfree_skiplist.hpp search(), which
// returns cur->key == search_key unconditionally.
func (f *LockFree[K, V]) Contains(key K) (V, bool) {
	f.metrics.Op("contains")
	bk := realKey(key)
	pred := f.head
	var cur *lfNode[K, V]
	for i := f.maxHeight - 1; i >= 0; i-- {
		cur, _ = pred.next[i].Load()
		for cur != f.tail {
			next, marked := cur.next[i].Load()
			if marked {
				cur = next
				continue
			}
			if compareBound(f.compare, cur.key, bk) < 0 {
				pred = cur
				cur = next
				continue
			}
			break
		}
		if cur != f.tail && compareBound(f.compare, cur.key, bk) == 0 {
			return cur.loadValue(), true
		}
	}
	var zero V
	return zero, false
}

// Keys returns every not-yet-physically-snipped, unmarked key in ascending
// order.
func (f *LockFree[K, V]) Keys() []K {
	keys := make([]K, 0, f.count.Load())
	cur, _ := f.head.next[0].Load()
	for cur != f.tail {
		next, marked := cur.next[0].Load()
		if !marked {
			keys = append(keys, cur.key.key)
		}
		cur = next
	}
	return keys
}

// Len returns the number of keys currently present.
func (f *LockFree[K, V]) Len() int {
	return int(f.count.Load())
}

// IsConsistent verifies strict ascending order at every level.
func (f *LockFree[K, V]) IsConsistent() bool {
	for i := 0; i < f.maxHeight; i++ {
		cur := f.head
		for {
			next, _ := cur.next[i].Load()
			if next == f.tail {
				break
			}
			if cur != f.head && compareBound(f.compare, cur.key, next.key) >= 0 {
				return false
			}
			cur = next
		}
	}
	return true
}

// Teardown drains and discards every reclaimed node, matching the
// "freed only at teardown" contract of spec §4.10.
func (f *LockFree[K, V]) Teardown() int {
	drained := f.reclaim.Drain()
	f.logger.Infof(logging.NSReclaim+"teardown drained %d nodes", len(drained))
	return len(drained)
}

var _ Map[int, int] = (*LockFree[int, int])(nil)
