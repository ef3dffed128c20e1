package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/minirtos/go-mini-rtos/core"
)

// KernelSnapshotProvider provides current scheduler state snapshots.
type KernelSnapshotProvider interface {
	Stats() core.Stats
	Tasks() []core.TaskStat
}

// SnapshotPoller periodically exports kernel Stats() snapshots into
// Prometheus gauges. It complements MetricsExporter: the exporter counts
// events as they happen, the poller samples the current scheduler state.
type SnapshotPoller struct {
	interval time.Duration

	kernelsMu sync.RWMutex
	kernels   map[string]KernelSnapshotProvider

	tick        *prom.GaugeVec
	switches    *prom.GaugeVec
	idleEntries *prom.GaugeVec
	ready       *prom.GaugeVec
	blocked     *prom.GaugeVec
	halted      *prom.GaugeVec
	taskState   *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	tick := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "minirtos",
		Name:      "kernel_tick",
		Help:      "Current tick counter value.",
	}, []string{"kernel"})
	switches := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "minirtos",
		Name:      "kernel_switches",
		Help:      "Context switch count snapshot.",
	}, []string{"kernel"})
	idleEntries := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "minirtos",
		Name:      "kernel_idle_entries",
		Help:      "Times the selector fell back to the idle task.",
	}, []string{"kernel"})
	ready := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "minirtos",
		Name:      "kernel_ready_tasks",
		Help:      "READY user tasks.",
	}, []string{"kernel"})
	blocked := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "minirtos",
		Name:      "kernel_blocked_tasks",
		Help:      "BLOCKED tasks.",
	}, []string{"kernel"})
	halted := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "minirtos",
		Name:      "kernel_halted",
		Help:      "Kernel halted state (1=halted, 0=running).",
	}, []string{"kernel"})
	taskState := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "minirtos",
		Name:      "task_blocked",
		Help:      "Per-task state (1=blocked, 0=ready).",
	}, []string{"kernel", "task"})

	var err error
	if tick, err = registerCollector(reg, tick); err != nil {
		return nil, err
	}
	if switches, err = registerCollector(reg, switches); err != nil {
		return nil, err
	}
	if idleEntries, err = registerCollector(reg, idleEntries); err != nil {
		return nil, err
	}
	if ready, err = registerCollector(reg, ready); err != nil {
		return nil, err
	}
	if blocked, err = registerCollector(reg, blocked); err != nil {
		return nil, err
	}
	if halted, err = registerCollector(reg, halted); err != nil {
		return nil, err
	}
	if taskState, err = registerCollector(reg, taskState); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:    interval,
		kernels:     make(map[string]KernelSnapshotProvider),
		tick:        tick,
		switches:    switches,
		idleEntries: idleEntries,
		ready:       ready,
		blocked:     blocked,
		halted:      halted,
		taskState:   taskState,
	}, nil
}

// AddKernel adds or replaces a kernel snapshot provider by name.
func (p *SnapshotPoller) AddKernel(name string, provider KernelSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "kernel")
	p.kernelsMu.Lock()
	p.kernels[name] = provider
	p.kernelsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.kernelsMu.RLock()
	defer p.kernelsMu.RUnlock()

	for name, provider := range p.kernels {
		stats := provider.Stats()
		p.tick.WithLabelValues(name).Set(float64(stats.Tick))
		p.switches.WithLabelValues(name).Set(float64(stats.Switches))
		p.idleEntries.WithLabelValues(name).Set(float64(stats.IdleEntries))
		p.ready.WithLabelValues(name).Set(float64(stats.ReadyTasks))
		p.blocked.WithLabelValues(name).Set(float64(stats.BlockedTasks))
		if stats.Halted {
			p.halted.WithLabelValues(name).Set(1)
		} else {
			p.halted.WithLabelValues(name).Set(0)
		}
		for _, t := range provider.Tasks() {
			if t.State == core.TaskBlocked {
				p.taskState.WithLabelValues(name, t.Name).Set(1)
			} else {
				p.taskState.WithLabelValues(name, t.Name).Set(0)
			}
		}
	}
}
