// Package metrics instruments the skip list variants with Prometheus
// counters and gauges.
//
// This generalizes the original C++ source's hand-rolled counter feature
// (original_source/implementation/lock_skiplist.hpp and
// lockfree_skiplist.hpp: COUNTER_SIZE, do_count, _counter, init_counter,
// collect_counter — a fixed-size array of per-bucket atomic counters
// sampled at random indices to avoid contention) into real, queryable
// metrics. The library it is grounded on,
// github.com/prometheus/client_golang, is used the same way in
// _examples/iamvalenciia-kick-game-stream to instrument request handling.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector holds the metrics for one skip list instance. A nil *Collector
// is valid and every method is a no-op on it, so instrumentation is
// opt-in and costs nothing when not requested.
type Collector struct {
	variant string

	operations *prometheus.CounterVec
	retries    *prometheus.CounterVec
	queueDepth *prometheus.GaugeVec
}

// New creates a Collector labeled with the given variant name ("seq",
// "lock", "lockfree", "indexed") and registers its metrics with reg. Pass a
// fresh *prometheus.Registry per list instance, or a shared one if the
// caller namespaces variant uniquely (e.g. includes an instance id).
func New(reg prometheus.Registerer, variant string) *Collector {
	c := &Collector{
		variant: variant,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concurrentskiplist",
			Name:      "operations_total",
			Help:      "Count of completed map operations, by variant and operation.",
		}, []string{"variant", "op"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "concurrentskiplist",
			Name:      "retries_total",
			Help:      "Count of validation/CAS retries during insert or remove, by variant and operation.",
		}, []string{"variant", "op"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "concurrentskiplist",
			Name:      "reclaim_queue_depth",
			Help:      "Depth of each reclamation shard, sampled at Teardown.",
		}, []string{"variant", "shard"}),
	}
	if reg != nil {
		reg.MustRegister(c.operations, c.retries, c.queueDepth)
	}
	return c
}

// Op increments the operation counter for op ("insert", "remove",
// "contains", "rank", "select").
func (c *Collector) Op(op string) {
	if c == nil {
		return
	}
	c.operations.WithLabelValues(c.variant, op).Inc()
}

// Retry increments the retry counter for op, the direct analogue of the
// original source's do_count/_counter sampling.
func (c *Collector) Retry(op string) {
	if c == nil {
		return
	}
	c.retries.WithLabelValues(c.variant, op).Inc()
}

// SetQueueDepth records the current depth of a reclamation shard.
func (c *Collector) SetQueueDepth(shard string, depth int) {
	if c == nil {
		return
	}
	c.queueDepth.WithLabelValues(c.variant, shard).Set(float64(depth))
}
