package prometheus

import (
	"context"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/lumaview/taskcore/core"
)

type poolStub struct {
	stats core.PoolStats
}

func (s poolStub) Stats() core.PoolStats { return s.stats }

func TestSnapshotPoller_CollectsPoolStats(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	poller.AddPool("pool-a", poolStub{stats: core.PoolStats{
		Name:       "pool-a",
		Status:     core.PoolUp,
		MinWorkers: 2,
		MaxWorkers: 8,
		Running:    3,
		Waiting:    1,
		QueueDepth: 4,
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	assertEventually(t, 2*time.Second, func() bool {
		depth := testutil.ToFloat64(poller.poolQueueDepth.WithLabelValues("pool-a"))
		running := testutil.ToFloat64(poller.poolWorkersRunning.WithLabelValues("pool-a"))
		return depth == 4 && running == 3
	})

	if got := testutil.ToFloat64(poller.poolWorkersWaiting.WithLabelValues("pool-a")); got != 1 {
		t.Fatalf("waiting gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(poller.poolWorkersMin.WithLabelValues("pool-a")); got != 2 {
		t.Fatalf("min gauge = %v, want 2", got)
	}
	if got := testutil.ToFloat64(poller.poolWorkersMax.WithLabelValues("pool-a")); got != 8 {
		t.Fatalf("max gauge = %v, want 8", got)
	}
	if got := testutil.ToFloat64(poller.poolUp.WithLabelValues("pool-a")); got != 1 {
		t.Fatalf("up gauge = %v, want 1", got)
	}
}

func TestSnapshotPoller_StartStop_Idempotent(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller.Start(ctx)
	poller.Start(ctx)
	poller.Stop()
	poller.Stop()
}

func assertEventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}
