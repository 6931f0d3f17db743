// Package skiplist implements a family of concurrent ordered maps built as
// skip lists: a sequential baseline (Seq), a fine-grained lock-based
// concurrent map (Lock), a lock-free concurrent map (LockFree), and a
// lock-based map augmented with span-indexed rank/select (Indexed).
//
// All four share the external contract described by Map: Insert, Remove,
// Contains, Keys, Len. Indexed additionally implements IndexedMap.
//
// Writes require no external synchronization for Lock, LockFree, and
// Indexed — concurrent goroutines may Insert/Remove/Contains the same map
// without a caller-side mutex. Seq requires external synchronization for
// any concurrent write, the same contract the teacher documents for its
// single-writer memtable skip list (see
// _examples/aalhour-rockyardkv/internal/memtable/skiplist.go).
//
// # Quick start
//
//	l := skiplist.NewOrderedLock[int, string](nil)
//	l.Insert(1, "one")
//	l.Insert(2, "two")
//	v, ok := l.Contains(1)     // "one", true
//	l.Remove(1)
//	for _, k := range l.Keys() { // [2]
//	    _ = k
//	}
package skiplist

import (
	"github.com/aalhour/concurrentskiplist/internal/logging"
	"github.com/aalhour/concurrentskiplist/internal/metrics"
)

// DefaultMaxHeight is the default maximum level count (L_max).
const DefaultMaxHeight = 32

// DefaultP is the default level-promotion probability.
const DefaultP = 0.5

// DefaultReclaimShards is the default reclamation shard count (spec §4.10).
const DefaultReclaimShards = 12

// Options configures a skip list instance. A nil *Options is equivalent to
// DefaultOptions(), following the teacher's "nil options means defaults"
// idiom used throughout db.Open/db.DefaultOptions.
type Options struct {
	// P is the level-promotion probability, in (0, 1).
	P float64

	// MaxHeight is L_max, the maximum number of levels, >= 1.
	MaxHeight int

	// ReclaimShards is the number of sharded retirement queues (Lock,
	// LockFree, Indexed only). Defaults to DefaultReclaimShards.
	ReclaimShards int

	// Logger receives diagnostic output. Defaults to a WARN-level logger
	// writing to stderr; pass logging.Discard to silence it.
	Logger logging.Logger

	// Metrics, if non-nil, is incremented on every operation and retry.
	// Nil disables instrumentation entirely at zero cost.
	Metrics *metrics.Collector
}

// DefaultOptions returns the default configuration: P=0.5, MaxHeight=32,
// ReclaimShards=12.
func DefaultOptions() *Options {
	return &Options{
		P:             DefaultP,
		MaxHeight:     DefaultMaxHeight,
		ReclaimShards: DefaultReclaimShards,
	}
}

// withDefaults returns a copy of o, or of DefaultOptions() if o is nil, with
// every zero-valued field filled in. It never mutates the caller's *Options.
func withDefaults(o *Options) *Options {
	if o == nil {
		o = DefaultOptions()
	}
	cp := *o
	if cp.P <= 0 || cp.P >= 1 {
		if cp.P == 0 {
			cp.P = DefaultP
		} else {
			panic("skiplist: P must be in (0, 1)")
		}
	}
	if cp.MaxHeight <= 0 {
		cp.MaxHeight = DefaultMaxHeight
	}
	if cp.ReclaimShards <= 0 {
		cp.ReclaimShards = DefaultReclaimShards
	}
	cp.Logger = logging.OrDefault(cp.Logger)
	return &cp
}

// Map is the external contract shared by every variant (spec §6).
type Map[K any, V any] interface {
	// Insert adds key to the map, overwriting any existing value.
	Insert(key K, value V)

	// Remove deletes key, reporting whether it was present at call time.
	Remove(key K) bool

	// Contains reports whether key is present, and its value if so. The
	// zero value of V is returned when not present.
	Contains(key K) (V, bool)

	// Keys returns every key in ascending order. It is a point-in-time
	// snapshot with quiescent semantics (spec §3 Lifecycle, §8).
	Keys() []K

	// Len returns the number of keys currently present.
	Len() int

	// IsConsistent walks the structure and verifies that keys are strictly
	// ascending at every level (Indexed also checks its span counts). The
	// subset property between levels is not checked. Intended for tests; callers
	// should not depend on its cost being anything but O(n log n).
	IsConsistent() bool
}

// IndexedMap extends Map with the span-indexed rank/select operations of
// variant I (spec §4.9, §6). ComputeIndices has a quiescent precondition:
// no concurrent Insert/Remove may be in flight while it runs, and Rank/Select
// results are only meaningful following a ComputeIndices call that was
// itself quiescent.
type IndexedMap[K any, V any] interface {
	Map[K, V]

	// ComputeIndices recomputes every span count from scratch. REQUIRES:
	// no concurrent mutation.
	ComputeIndices()

	// Rank returns key's 0-based position in sorted order, and whether it
	// is present. Requires index freshness (a prior quiescent
	// ComputeIndices); otherwise the result may be stale.
	Rank(key K) (int, bool)

	// Select returns the value at 0-based rank r, and whether r was in
	// range of the span counts as last computed. Stale indices are not
	// detected: after a mutation without a new ComputeIndices, the result
	// may be wrong while still reporting true.
	Select(r int) (V, bool)
}

// ErrKeyNotFound is returned by the error-returning convenience wrapper
// GetValue for callers who prefer an idiomatic (V, error) shape over the
// core API's (V, bool).
type notFoundError struct{}

func (notFoundError) Error() string { return "skiplist: key not found" }

// ErrKeyNotFound is the sentinel matched by errors.Is(err, ErrKeyNotFound).
var ErrKeyNotFound error = notFoundError{}

// GetValue adapts Map's boolean-returning Contains to an error-returning
// shape, for call sites where that reads better. It does not change any
// operation's semantics — see SPEC_FULL.md §14.
func GetValue[K any, V any](m Map[K, V], key K) (V, error) {
	v, ok := m.Contains(key)
	if !ok {
		var zero V
		return zero, ErrKeyNotFound
	}
	return v, nil
}
