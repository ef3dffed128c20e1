package prometheus

import (
	"context"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/minirtos/go-mini-rtos/core"
)

type fakeKernel struct {
	stats core.Stats
	tasks []core.TaskStat
}

func (f *fakeKernel) Stats() core.Stats       { return f.stats }
func (f *fakeKernel) Tasks() []core.TaskStat  { return f.tasks }

func TestSnapshotPoller_CollectsKernelStats(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, time.Hour)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	poller.AddKernel("demo", &fakeKernel{
		stats: core.Stats{Tick: 42, Switches: 7, IdleEntries: 5, ReadyTasks: 2, BlockedTasks: 2},
		tasks: []core.TaskStat{
			{Name: "idle", State: core.TaskReady},
			{Name: "green", State: core.TaskBlocked, WakeTick: 100},
		},
	})
	poller.collectOnce()

	if got := testutil.ToFloat64(poller.tick.WithLabelValues("demo")); got != 42 {
		t.Fatalf("tick gauge = %v, want 42", got)
	}
	if got := testutil.ToFloat64(poller.switches.WithLabelValues("demo")); got != 7 {
		t.Fatalf("switches gauge = %v, want 7", got)
	}
	if got := testutil.ToFloat64(poller.taskState.WithLabelValues("demo", "green")); got != 1 {
		t.Fatalf("green blocked gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(poller.taskState.WithLabelValues("demo", "idle")); got != 0 {
		t.Fatalf("idle blocked gauge = %v, want 0", got)
	}
}

func TestSnapshotPoller_StartStop(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}
	poller.AddKernel("demo", &fakeKernel{stats: core.Stats{Tick: 1}})

	poller.Start(context.Background())
	poller.Start(context.Background()) // no-op
	time.Sleep(30 * time.Millisecond)
	poller.Stop()
	poller.Stop() // safe

	if got := testutil.ToFloat64(poller.tick.WithLabelValues("demo")); got != 1 {
		t.Fatalf("tick gauge = %v, want 1", got)
	}
}
