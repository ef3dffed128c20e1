package prometheus

import (
	"errors"
	"fmt"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/minirtos/go-mini-rtos/core"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	SleepBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	ticksTotal           prom.Counter
	contextSwitchesTotal *prom.CounterVec
	taskWakesTotal       *prom.CounterVec
	sleepTicks           *prom.HistogramVec
	readyTasks           prom.Gauge
	faultsTotal          *prom.CounterVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for
// core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "minirtos"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.SleepBuckets
	if len(buckets) == 0 {
		buckets = prom.ExponentialBuckets(1, 2, 12)
	}

	ticks := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "ticks_total",
		Help:      "Total number of timer ticks handled.",
	})
	switches := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "context_switches_total",
		Help:      "Total number of context switches.",
	}, []string{"from", "to"})
	wakes := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_wakes_total",
		Help:      "Total number of BLOCKED to READY transitions.",
	}, []string{"task"})
	sleeps := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "sleep_ticks",
		Help:      "Requested sleep durations in ticks.",
		Buckets:   buckets,
	}, []string{"task"})
	ready := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "ready_tasks",
		Help:      "READY user tasks after the last tick.",
	})
	faults := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "faults_total",
		Help:      "Terminal processor faults by kind.",
	}, []string{"kind"})

	var err error
	if ticks, err = registerCollector(reg, ticks); err != nil {
		return nil, err
	}
	if switches, err = registerCollector(reg, switches); err != nil {
		return nil, err
	}
	if wakes, err = registerCollector(reg, wakes); err != nil {
		return nil, err
	}
	if sleeps, err = registerCollector(reg, sleeps); err != nil {
		return nil, err
	}
	if ready, err = registerCollector(reg, ready); err != nil {
		return nil, err
	}
	if faults, err = registerCollector(reg, faults); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		ticksTotal:           ticks,
		contextSwitchesTotal: switches,
		taskWakesTotal:       wakes,
		sleepTicks:           sleeps,
		readyTasks:           ready,
		faultsTotal:          faults,
	}, nil
}

// RecordTick counts one handled timer tick.
func (m *MetricsExporter) RecordTick(now uint64) {
	if m == nil {
		return
	}
	m.ticksTotal.Inc()
}

// RecordContextSwitch counts a completed switch.
func (m *MetricsExporter) RecordContextSwitch(from, to string) {
	if m == nil {
		return
	}
	m.contextSwitchesTotal.WithLabelValues(normalizeLabel(from, "unknown"), normalizeLabel(to, "unknown")).Inc()
}

// RecordTaskWake counts a BLOCKED to READY transition.
func (m *MetricsExporter) RecordTaskWake(task string) {
	if m == nil {
		return
	}
	m.taskWakesTotal.WithLabelValues(normalizeLabel(task, "unknown")).Inc()
}

// RecordTaskSleep observes a requested sleep duration.
func (m *MetricsExporter) RecordTaskSleep(task string, ticks uint64) {
	if m == nil {
		return
	}
	m.sleepTicks.WithLabelValues(normalizeLabel(task, "unknown")).Observe(float64(ticks))
}

// RecordReadyTasks records the READY user-task count.
func (m *MetricsExporter) RecordReadyTasks(n int) {
	if m == nil {
		return
	}
	m.readyTasks.Set(float64(n))
}

// RecordFault counts a terminal fault.
func (m *MetricsExporter) RecordFault(kind string) {
	if m == nil {
		return
	}
	m.faultsTotal.WithLabelValues(normalizeLabel(kind, "unknown")).Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
