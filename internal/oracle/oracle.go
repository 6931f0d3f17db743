// Package oracle implements the randomness oracle shared by every skip list
// variant: a geometric level generator and a uniform small-integer generator
// for reclamation-shard selection.
//
// Reference: original_source/implementation/random_generator.hpp
// (random_level, random_index) generalized to safe concurrent use by
// pooling one *rand.Rand per caller instead of a single thread_local
// instance — Go has no thread-local storage, so a sync.Pool of rand
// sources is the idiomatic stand-in (the same pooling idiom the teacher
// uses for scratch buffers in internal/mempool.Pool).
package oracle

import (
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// Oracle produces geometric skip-list levels and uniform small integers
// without requiring external synchronization. Each call borrows a
// goroutine-local *rand.Rand from a pool, uses it, and returns it — this
// keeps the hot insert/remove path free of global-lock contention on the
// RNG itself, which would otherwise serialize all concurrent writers.
type Oracle struct {
	pool sync.Pool
}

// New creates an Oracle. Distinct Oracles get distinct (unseeded) sources so
// that tests constructing several lists do not observe correlated level
// sequences.
func New() *Oracle {
	o := &Oracle{}
	o.pool.New = func() any {
		return rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(newSeedMix())))
	}
	return o
}

// NewSeeded creates an Oracle whose sources all derive from seed, for
// reproducible tests.
func NewSeeded(seed int64) *Oracle {
	o := &Oracle{}
	var mu sync.Mutex
	src := rand.New(rand.NewSource(seed))
	o.pool.New = func() any {
		mu.Lock()
		defer mu.Unlock()
		return rand.New(rand.NewSource(src.Int63()))
	}
	return o
}

// RandomLevel returns a geometric level in [1, maxLevel]: 1 plus the number
// of Bernoulli(p) successes, capped at maxLevel.
//
// Each trial compares a uniform uint32 against a threshold scaled from p
// once up front, rather than computing a fresh float64 comparison per
// trial — the same scaled-fixed-point trick as the teacher's
// internal/memtable/skiplist.go randomHeight (kScaledInvB =
// uint32(0xFFFFFFFF)/branchingFactor, compared against Uint32() each
// level), adapted here from a branching factor to an arbitrary p.
//
// Reference: random_generator.hpp random_level.
func (o *Oracle) RandomLevel(p float64, maxLevel int) int {
	r := o.pool.Get().(*rand.Rand)
	defer o.pool.Put(r)

	threshold := uint32(p * float64(math.MaxUint32))
	level := 1
	for level < maxLevel && r.Uint32() < threshold {
		level++
	}
	return level
}

// RandomBucket returns a uniform integer in [0, m).
//
// Reference: random_generator.hpp random_index.
func (o *Oracle) RandomBucket(m int) int {
	r := o.pool.Get().(*rand.Rand)
	defer o.pool.Put(r)
	return r.Intn(m)
}

var seedCounter atomic.Uint64

// newSeedMix produces a small amount of extra entropy so that Oracles
// created back-to-back within the same nanosecond still diverge.
func newSeedMix() uint64 {
	x := seedCounter.Add(1)
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	return x
}
