package core

import (
	"context"
	"fmt"
)

// TaskID indexes a slot in the task table.
type TaskID int

// IdleTask is the reserved slot for the idle task. It is always READY and
// is selected only when no user task is runnable.
const IdleTask TaskID = 0

// TaskState is the run state recorded in a TCB. Two values are enough:
// "idle" is a scheduling outcome, not a per-task state.
type TaskState uint8

const (
	TaskReady TaskState = iota
	TaskBlocked
)

func (s TaskState) String() string {
	switch s {
	case TaskReady:
		return "ready"
	case TaskBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// TaskFunc is a task body. It runs on a private stack, never returns, and
// gives up the processor only through Runtime.Sleep and
// Runtime.WaitForInterrupt.
type TaskFunc func(ctx context.Context)

// TCB carries the private scheduling state of one task slot.
type TCB struct {
	// SavedSP is the address of the top of the task's saved register
	// context. Written only by the context-switch path and, once at boot,
	// by the stack frame initializer. Valid only while the task is not
	// running.
	SavedSP uint32

	// StackTop and StackLimit delimit the task's private stack region.
	// The region is exclusively owned by this task.
	StackTop   uint32
	StackLimit uint32

	// WakeTick is the tick at which a blocked task becomes ready again.
	// Meaningful only while State is TaskBlocked.
	WakeTick uint64

	State TaskState
	Entry TaskFunc
	Name  string

	started bool
	resume  chan struct{}
}

// Store is the fixed task table plus the index of the running slot. The
// table is allocated once at boot and lives until power-off; slots are
// never added or removed.
type Store struct {
	tasks   []*TCB
	current TaskID
}

// NewStore builds the task table. Slot 0 must be the idle task; the first
// user task (slot 1) is the one the boot code enters directly.
func NewStore(tcbs []*TCB) (*Store, error) {
	if len(tcbs) < 2 {
		return nil, fmt.Errorf("task table needs the idle slot and at least one user task, got %d slots", len(tcbs))
	}
	for i, t := range tcbs {
		if t == nil || t.Entry == nil {
			return nil, fmt.Errorf("task slot %d has no entry function", i)
		}
		t.State = TaskReady
		t.resume = make(chan struct{}, 1)
	}
	return &Store{tasks: tcbs, current: 1}, nil
}

func (s *Store) Len() int { return len(s.tasks) }

func (s *Store) Task(id TaskID) *TCB { return s.tasks[int(id)] }

// Current returns the slot index of the running task.
func (s *Store) Current() TaskID { return s.current }

func (s *Store) CurrentTCB() *TCB { return s.tasks[int(s.current)] }

// Block records the wake tick and moves the task to TaskBlocked. The idle
// task must never block; it is the selector's fallback.
func (s *Store) Block(id TaskID, wake uint64) error {
	if id == IdleTask {
		return fmt.Errorf("idle task cannot block")
	}
	t := s.tasks[int(id)]
	t.WakeTick = wake
	t.State = TaskBlocked
	return nil
}

// ReadyUserTasks counts READY tasks excluding the idle slot.
func (s *Store) ReadyUserTasks() int {
	n := 0
	for i, t := range s.tasks {
		if TaskID(i) != IdleTask && t.State == TaskReady {
			n++
		}
	}
	return n
}

// BlockedTasks counts tasks currently in TaskBlocked.
func (s *Store) BlockedTasks() int {
	n := 0
	for _, t := range s.tasks {
		if t.State == TaskBlocked {
			n++
		}
	}
	return n
}
