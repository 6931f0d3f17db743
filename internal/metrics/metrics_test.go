package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCountsOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg, "lock")

	c.Op("insert")
	c.Op("insert")
	c.Op("remove")
	c.Retry("insert")
	c.SetQueueDepth("0", 5)

	if got := testutil.ToFloat64(c.operations.WithLabelValues("lock", "insert")); got != 2 {
		t.Fatalf("insert count = %v; want 2", got)
	}
	if got := testutil.ToFloat64(c.operations.WithLabelValues("lock", "remove")); got != 1 {
		t.Fatalf("remove count = %v; want 1", got)
	}
	if got := testutil.ToFloat64(c.retries.WithLabelValues("lock", "insert")); got != 1 {
		t.Fatalf("retry count = %v; want 1", got)
	}
	if got := testutil.ToFloat64(c.queueDepth.WithLabelValues("lock", "0")); got != 5 {
		t.Fatalf("queue depth = %v; want 5", got)
	}
}

func TestNilCollectorIsNoOp(t *testing.T) {
	var c *Collector
	c.Op("insert")
	c.Retry("insert")
	c.SetQueueDepth("0", 1)
}
