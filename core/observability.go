package core

// Metrics defines the interface for collecting scheduler metrics.
// Implementations can send metrics to monitoring systems (Prometheus,
// StatsD, etc.).
//
// Methods should be non-blocking and fast; they run inside the tick and
// context-switch paths.
type Metrics interface {
	// RecordTick is called once per timer tick with the new counter value.
	RecordTick(now uint64)

	// RecordContextSwitch is called after every completed switch.
	RecordContextSwitch(from, to string)

	// RecordTaskWake is called when a blocked task becomes ready.
	RecordTaskWake(task string)

	// RecordTaskSleep is called when a task blocks, with the requested
	// duration in ticks.
	RecordTaskSleep(task string, ticks uint64)

	// RecordReadyTasks is called after each tick with the number of READY
	// user tasks.
	RecordReadyTasks(n int)

	// RecordFault is called when a terminal fault halts the scheduler.
	RecordFault(kind string)
}

// NilMetrics provides a no-op metrics implementation. It is the default
// when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTick(now uint64)                 {}
func (m *NilMetrics) RecordContextSwitch(from, to string)   {}
func (m *NilMetrics) RecordTaskWake(task string)            {}
func (m *NilMetrics) RecordTaskSleep(task string, t uint64) {}
func (m *NilMetrics) RecordReadyTasks(n int)                {}
func (m *NilMetrics) RecordFault(kind string)               {}

// Stats is a point-in-time snapshot of kernel state.
type Stats struct {
	Tick         uint64
	Switches     uint64
	IdleEntries  uint64
	CurrentTask  string
	ReadyTasks   int
	BlockedTasks int
	Halted       bool
}

// TaskStat describes one task slot in a snapshot.
type TaskStat struct {
	ID       TaskID
	Name     string
	State    TaskState
	WakeTick uint64
}
