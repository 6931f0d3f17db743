package skiplist

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/aalhour/concurrentskiplist/internal/logging"
	"github.com/aalhour/concurrentskiplist/internal/metrics"
	"github.com/aalhour/concurrentskiplist/internal/oracle"
)

// seqNode is a single-threaded skip list node. Unlike the concurrent
// variants, there is no tail sentinel: end of list is represented by a nil
// forward pointer, the same convention the teacher's memtable skip list
// uses (_examples/aalhour-rockyardkv/internal/memtable/skiplist.go
// skipNode.next), since no concurrent reader can ever observe a half-built
// node here.
type seqNode[K any, V any] struct {
	key     K
	value   V
	forward []*seqNode[K, V]
}

// Seq is the sequential (single-threaded) skip list baseline. Every
// exported method requires external synchronization if called from more
// than one goroutine — it performs no locking or atomics of its own.
//
// Reference: original_source/implementation/seq_skiplist.hpp.
type Seq[K any, V any] struct {
	head      *seqNode[K, V]
	level     int // highest level currently in use, 1-based
	maxHeight int
	p         float64
	compare   Comparator[K]
	oracle    *oracle.Oracle
	logger    logging.Logger
	metrics   *metrics.Collector
	count     int
}

// NewSeq creates an empty Seq using cmp to order keys. A nil *Options is
// equivalent to DefaultOptions().
func NewSeq[K any, V any](cmp Comparator[K], opts *Options) *Seq[K, V] {
	o := withDefaults(opts)
	return &Seq[K, V]{
		head:      &seqNode[K, V]{forward: make([]*seqNode[K, V], o.MaxHeight)},
		level:     1,
		maxHeight: o.MaxHeight,
		p:         o.P,
		compare:   cmp,
		oracle:    oracle.New(),
		logger:    o.Logger,
		metrics:   o.Metrics,
	}
}

// NewOrderedSeq is a convenience constructor for cmp.Ordered key types.
func NewOrderedSeq[K cmp.Ordered, V any](opts *Options) *Seq[K, V] {
	return NewSeq[K, V](OrderedComparator[K](), opts)
}

// find walks top-down, recording in update the rightmost node at each level
// whose successor is >= key (Pugh's get_update_nodes).
func (s *Seq[K, V]) find(key K) (update []*seqNode[K, V], found *seqNode[K, V]) {
	update = make([]*seqNode[K, V], s.maxHeight)
	cur := s.head
	for i := s.level - 1; i >= 0; i-- {
		for cur.forward[i] != nil && s.compare(cur.forward[i].key, key) < 0 {
			cur = cur.forward[i]
		}
		update[i] = cur
	}
	if cur.forward[0] != nil && s.compare(cur.forward[0].key, key) == 0 {
		found = cur.forward[0]
	}
	return update, found
}

// Insert adds key to the map, overwriting any existing value.
func (s *Seq[K, V]) Insert(key K, value V) {
	update, found := s.find(key)
	if found != nil {
		found.value = value
		s.metrics.Op("insert")
		return
	}

	h := s.oracle.RandomLevel(s.p, s.maxHeight)
	if h > s.level {
		for i := s.level; i < h; i++ {
			update[i] = s.head
		}
		s.level = h
	}

	n := &seqNode[K, V]{key: key, value: value, forward: make([]*seqNode[K, V], h)}
	for i := 0; i < h; i++ {
		n.forward[i] = update[i].forward[i]
		update[i].forward[i] = n
	}
	s.count++
	s.metrics.Op("insert")
}

// Remove deletes key, reporting whether it was present.
func (s *Seq[K, V]) Remove(key K) bool {
	update, found := s.find(key)
	if found == nil {
		s.metrics.Op("remove")
		return false
	}
	for i := 0; i < s.level; i++ {
		if update[i].forward[i] != found {
			continue
		}
		update[i].forward[i] = found.forward[i]
	}
	for s.level > 1 && s.head.forward[s.level-1] == nil {
		s.level--
	}
	s.count--
	s.metrics.Op("remove")
	return true
}

// Contains reports whether key is present, and its value if so.
func (s *Seq[K, V]) Contains(key K) (V, bool) {
	s.metrics.Op("contains")
	cur := s.head
	for i := s.level - 1; i >= 0; i-- {
		for cur.forward[i] != nil && s.compare(cur.forward[i].key, key) < 0 {
			cur = cur.forward[i]
		}
	}
	cur = cur.forward[0]
	if cur != nil && s.compare(cur.key, key) == 0 {
		return cur.value, true
	}
	var zero V
	return zero, false
}

// Keys returns every key in ascending order.
func (s *Seq[K, V]) Keys() []K {
	keys := make([]K, 0, s.count)
	for n := s.head.forward[0]; n != nil; n = n.forward[0] {
		keys = append(keys, n.key)
	}
	return keys
}

// Len returns the number of keys currently present.
func (s *Seq[K, V]) Len() int {
	return s.count
}

// IsConsistent verifies strict ascending order at every level.
//
// Reference: original_source/implementation/seq_skiplist.hpp is_consistent.
func (s *Seq[K, V]) IsConsistent() bool {
	for i := 0; i < s.level; i++ {
		cur := s.head
		for cur.forward[i] != nil {
			nxt := cur.forward[i]
			if cur != s.head && s.compare(cur.key, nxt.key) >= 0 {
				return false
			}
			cur = nxt
		}
	}
	return true
}

// String renders an ASCII-art view of the list, one line per level, highest
// (sparsest) level first and level 0 last.
//
// Reference: _examples/keunwoo-skiplist/skiplist.go String(), the only
// example in the retrieval pack that renders a skip list as a diagram
// rather than a flat key dump.
func (s *Seq[K, V]) String() string {
	var b strings.Builder
	for i := s.level - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "L%d: head", i)
		for n := s.head.forward[i]; n != nil; n = n.forward[i] {
			fmt.Fprintf(&b, " -> %v", n.key)
		}
		b.WriteString(" -> nil\n")
	}
	return b.String()
}

var _ Map[int, int] = (*Seq[int, int])(nil)
