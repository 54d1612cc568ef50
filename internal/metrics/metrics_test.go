package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObservePoolState(t *testing.T) {
	ObservePoolState("alpha", 5, 2)
	if got := testutil.ToFloat64(SSHPoolTotal.WithLabelValues("alpha")); got != 5 {
		t.Fatalf("SSHPoolTotal = %v, want 5", got)
	}
	if got := testutil.ToFloat64(SSHPoolIdle.WithLabelValues("alpha")); got != 2 {
		t.Fatalf("SSHPoolIdle = %v, want 2", got)
	}
}

func TestObserveFanout(t *testing.T) {
	before := testutil.CollectAndCount(FanoutLatency)
	ObserveFanout("container.list", 10*time.Millisecond)
	after := testutil.CollectAndCount(FanoutLatency)
	if after <= before {
		t.Fatalf("expected a new histogram observation to be recorded, before=%d after=%d", before, after)
	}
}

func TestSince(t *testing.T) {
	start := time.Now().Add(-5 * time.Millisecond)
	if d := Since(start); d <= 0 {
		t.Fatalf("expected a positive duration, got %v", d)
	}
}
