package core

import (
	"context"
	"fmt"
)

// Runtime is the in-task handle to the kernel. Task bodies obtain it from
// their context; it is the only channel through which a task may
// communicate with the scheduler.
type Runtime struct {
	k *Kernel
	t *TCB
	// id is the task's own slot; Sleep mutates only this slot's TCB.
	id TaskID
}

type runtimeKeyType struct{}

var runtimeKey runtimeKeyType

func withRuntime(ctx context.Context, k *Kernel, t *TCB) context.Context {
	id := TaskID(0)
	for i := 0; i < k.store.Len(); i++ {
		if k.store.Task(TaskID(i)) == t {
			id = TaskID(i)
			break
		}
	}
	return context.WithValue(ctx, runtimeKey, &Runtime{k: k, t: t, id: id})
}

// FromContext returns the calling task's Runtime, or nil when the context
// does not belong to a task.
func FromContext(ctx context.Context) *Runtime {
	if v := ctx.Value(runtimeKey); v != nil {
		return v.(*Runtime)
	}
	return nil
}

// ID returns the task's slot index.
func (rt *Runtime) ID() TaskID { return rt.id }

// Name returns the task's configured name.
func (rt *Runtime) Name() string { return rt.t.Name }

// Now returns the current tick count.
func (rt *Runtime) Now() uint64 { return rt.k.Now() }

// Sleep blocks the calling task for d ticks and yields the processor.
// It returns when the task is selected again after its wake tick, or
// ErrStopped if the kernel shut down while the task was parked.
//
// The TCB mutation, the wake-tick record, and the switch request all
// happen inside one critical section; the pended switch fires only after
// the section ends, so the task's own state is complete and visible
// before it gives up the CPU. A zero duration still yields at least once
// and wakes on the next tick boundary.
func (rt *Runtime) Sleep(d uint64) error {
	if rt.id == IdleTask {
		return fmt.Errorf("idle task cannot block")
	}
	k := rt.k

	k.irqMu.Lock() // interrupts off
	wake := k.ticks.Now() + d
	if err := k.store.Block(rt.id, wake); err != nil {
		k.irqMu.Unlock()
		return err
	}
	k.port.PendSwitch()
	k.irqMu.Unlock() // interrupts on; the switch fires at the next boundary

	k.metrics.RecordTaskSleep(rt.t.Name, d)
	return rt.park()
}

// WaitForInterrupt parks the task without blocking it, like a WFI
// instruction: the task stays READY and resumes the next time the
// scheduler selects it after interrupt work. The idle task's body is a
// loop around this call.
func (rt *Runtime) WaitForInterrupt() error {
	return rt.park()
}

// Yield requests an immediate context switch without blocking the task.
// The task stays READY and takes its next round-robin turn.
func (rt *Runtime) Yield() error {
	k := rt.k
	k.irqMu.Lock()
	k.port.PendSwitch()
	k.irqMu.Unlock()
	return rt.park()
}

// park hands the CPU back to the scheduler and waits to be dispatched
// again.
func (rt *Runtime) park() error {
	k := rt.k
	select {
	case k.released <- struct{}{}:
	case <-k.stopCh:
		return k.runErr()
	}
	select {
	case <-rt.t.resume:
		return nil
	case <-k.stopCh:
		return k.runErr()
	}
}
