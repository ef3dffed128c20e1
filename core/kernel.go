package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrStopped is returned by blocking kernel operations after a clean
// shutdown.
var ErrStopped = errors.New("kernel stopped")

// ErrNotStarted is returned when ticks are delivered before Start.
var ErrNotStarted = errors.New("kernel not started")

// KernelConfig holds optional collaborators. Nil fields get defaults.
type KernelConfig struct {
	// Logger receives scheduler events. Defaults to DefaultLogger.
	Logger Logger

	// Metrics receives tick/switch/wake counters. Defaults to NilMetrics.
	Metrics Metrics

	// FaultHandler receives terminal faults. Defaults to LogFaultHandler.
	FaultHandler FaultHandler
}

// Kernel is the cooperative scheduler engine. It owns the task table, the
// tick engine, and the port, and it is the only component allowed to
// drive context switches.
//
// The concurrency model mirrors the hardware it models: the run loop
// goroutine stands in for handler mode (tick and context-switch
// exceptions), task goroutines stand in for thread mode, and irqMu is the
// PRIMASK-style interrupt mask that guards every mutation of scheduling
// state. At most one task goroutine executes at a time; the CPU is handed
// between the loop and tasks explicitly.
type Kernel struct {
	store *Store
	ticks *TickEngine
	port  Port

	log     Logger
	metrics Metrics
	faults  FaultHandler

	// irqMu is the critical-section lock: held by the tick handler, the
	// context-switch path, and the blocking API while they mutate TCBs.
	irqMu sync.Mutex

	irq      chan tickRequest
	released chan struct{}
	stopCh   chan struct{}
	done     chan struct{}

	stopOnce sync.Once
	haltOnce sync.Once
	started  atomic.Bool
	halted   atomic.Bool
	fault    *Fault

	switches    uint64
	idleEntries uint64

	taskCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type tickRequest struct {
	advance bool
	done    chan struct{}
}

// NewKernel assembles the scheduler and fabricates every task's initial
// stack frame. Configuration errors (task-count mismatch, frames that do
// not fit their region) surface here, before anything runs.
func NewKernel(store *Store, sm *StackMap, port Port, cfg KernelConfig) (*Kernel, error) {
	if store == nil || sm == nil || port == nil {
		return nil, fmt.Errorf("kernel needs a store, a stack map and a port")
	}
	if sm.Slots() != store.Len() {
		return nil, fmt.Errorf("stack map has %d slots but the task table has %d", sm.Slots(), store.Len())
	}

	k := &Kernel{
		store:    store,
		ticks:    NewTickEngine(store),
		port:     port,
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
		faults:   cfg.FaultHandler,
		irq:      make(chan tickRequest, 64),
		released: make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	if k.log == nil {
		k.log = NewDefaultLogger()
	}
	if k.metrics == nil {
		k.metrics = &NilMetrics{}
	}
	if k.faults == nil {
		k.faults = &LogFaultHandler{Log: k.log}
	}
	k.taskCtx, k.cancel = context.WithCancel(context.Background())

	// Fabricate the "already interrupted" frame for every slot so the
	// first restore of a never-run task lands at its entry.
	for i := 0; i < store.Len(); i++ {
		t := store.Task(TaskID(i))
		t.StackTop = sm.TaskStackTop(i)
		t.StackLimit = sm.TaskStackLimit(i)
		t.SavedSP = t.StackTop
		if err := port.InitStack(t, port.EntryAddress(i)); err != nil {
			return nil, fmt.Errorf("init stack for task %q: %w", t.Name, err)
		}
	}
	return k, nil
}

// Start enters the first user task (slot 1), the way the boot code calls
// its handler directly after switching to the process stack. It returns
// once every task dispatched during boot has run to its first yield.
func (k *Kernel) Start() error {
	if !k.started.CompareAndSwap(false, true) {
		return fmt.Errorf("kernel already started")
	}
	go k.loop()
	k.dispatch(k.store.CurrentTCB())
	return k.barrier()
}

// Tick delivers one timer interrupt and returns after the tick handler,
// any resulting context switches, and any resumed task work have
// completed. It is the deterministic time source for tests; Run drives it
// from a real timer.
func (k *Kernel) Tick() error {
	if !k.started.Load() {
		return ErrNotStarted
	}
	return k.request(tickRequest{advance: true, done: make(chan struct{})})
}

// AdvanceTicks delivers n ticks back to back.
func (k *Kernel) AdvanceTicks(n int) error {
	for i := 0; i < n; i++ {
		if err := k.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// barrier waits for the run loop to reach quiescence without advancing
// time.
func (k *Kernel) barrier() error {
	return k.request(tickRequest{done: make(chan struct{})})
}

func (k *Kernel) request(req tickRequest) error {
	select {
	case k.irq <- req:
	case <-k.done:
		return k.runErr()
	}
	select {
	case <-req.done:
		return nil
	case <-k.done:
		return k.runErr()
	}
}

// Run starts the kernel and feeds it ticks at the given interval until
// the context is canceled or a fault halts the scheduler.
func (k *Kernel) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %v", interval)
	}
	if err := k.Start(); err != nil {
		return err
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			k.Stop()
			return ctx.Err()
		case <-k.done:
			return k.runErr()
		case <-ticker.C:
			if err := k.Tick(); err != nil {
				return err
			}
		}
	}
}

// Stop shuts the kernel down and waits for every task goroutine to
// unwind. Safe to call more than once.
func (k *Kernel) Stop() {
	k.stopOnce.Do(func() { close(k.stopCh) })
	if k.started.Load() {
		<-k.done
	}
	k.cancel()
	k.wg.Wait()
}

// Err reports why the kernel stopped: the fault that halted it, or
// ErrStopped after a clean Stop. Nil while running.
func (k *Kernel) Err() error {
	select {
	case <-k.done:
		return k.runErr()
	default:
		return nil
	}
}

func (k *Kernel) runErr() error {
	if k.halted.Load() {
		return k.fault
	}
	return ErrStopped
}

// Now returns the current tick count.
func (k *Kernel) Now() uint64 {
	k.irqMu.Lock()
	defer k.irqMu.Unlock()
	return k.ticks.Now()
}

// Stats returns a snapshot of scheduler state.
func (k *Kernel) Stats() Stats {
	k.irqMu.Lock()
	defer k.irqMu.Unlock()
	return Stats{
		Tick:         k.ticks.Now(),
		Switches:     k.switches,
		IdleEntries:  k.idleEntries,
		CurrentTask:  k.store.CurrentTCB().Name,
		ReadyTasks:   k.store.ReadyUserTasks(),
		BlockedTasks: k.store.BlockedTasks(),
		Halted:       k.halted.Load(),
	}
}

// Tasks returns a snapshot of every slot's state.
func (k *Kernel) Tasks() []TaskStat {
	k.irqMu.Lock()
	defer k.irqMu.Unlock()
	out := make([]TaskStat, k.store.Len())
	for i := range out {
		t := k.store.Task(TaskID(i))
		out[i] = TaskStat{ID: TaskID(i), Name: t.Name, State: t.State, WakeTick: t.WakeTick}
	}
	return out
}

// loop is the handler-mode side of the kernel. It services tick requests,
// runs the deferred context-switch exception when the CPU is free, and
// hands the CPU to the selected task.
func (k *Kernel) loop() {
	defer close(k.done)

	// The boot task owns the CPU when the loop starts.
	cpuFree := false
	var acks []chan struct{}

	for {
		if cpuFree {
			if k.switchPending() {
				next, ok := k.contextSwitch()
				if !ok {
					return
				}
				k.dispatch(next)
				cpuFree = false
			} else {
				// Quiescent: every requested switch has resolved and the
				// running task has parked. Acknowledge delivered ticks.
				for _, ack := range acks {
					close(ack)
				}
				acks = acks[:0]
			}
		}

		select {
		case req := <-k.irq:
			if req.advance {
				k.handleTick()
			}
			if req.done != nil {
				acks = append(acks, req.done)
			}
		case <-k.released:
			cpuFree = true
		case <-k.stopCh:
			return
		}
	}
}

// handleTick is the timer interrupt: advance time, ready due sleepers,
// and request a context switch. It never switches directly; the switch
// stays pending until the CPU is handed back, so it can never run in the
// middle of interrupt work.
func (k *Kernel) handleTick() {
	k.irqMu.Lock()
	woken := k.ticks.Advance()
	now := k.ticks.Now()
	k.port.PendSwitch()
	ready := k.store.ReadyUserTasks()
	k.irqMu.Unlock()

	k.metrics.RecordTick(now)
	k.metrics.RecordReadyTasks(ready)
	for _, id := range woken {
		t := k.store.Task(id)
		k.metrics.RecordTaskWake(t.Name)
		k.log.Debug("task woke", F("task", t.Name), F("tick", now))
	}
}

func (k *Kernel) switchPending() bool {
	k.irqMu.Lock()
	defer k.irqMu.Unlock()
	return k.port.TakePendingSwitch()
}

// contextSwitch is the PendSV-equivalent path: save the outgoing context,
// select the next slot, restore the incoming context. Returns false when
// a fault halted the scheduler.
func (k *Kernel) contextSwitch() (*TCB, bool) {
	k.irqMu.Lock()

	cur := k.store.CurrentTCB()
	if err := k.port.SaveContext(cur); err != nil {
		k.irqMu.Unlock()
		k.halt(asFault(err))
		return nil, false
	}

	next := k.store.NextRunnable()
	k.store.setCurrent(next)
	nt := k.store.Task(next)

	res, err := k.port.RestoreContext(nt)
	if err != nil {
		k.irqMu.Unlock()
		k.halt(asFault(err))
		return nil, false
	}
	if !nt.started && res.PC != k.port.EntryAddress(int(next)) {
		k.irqMu.Unlock()
		k.halt(&Fault{
			Kind:   FaultHard,
			Addr:   res.PC,
			Reason: fmt.Sprintf("exception return for task %q landed outside its entry", nt.Name),
		})
		return nil, false
	}

	k.switches++
	if next == IdleTask {
		k.idleEntries++
	}
	k.irqMu.Unlock()

	k.metrics.RecordContextSwitch(cur.Name, nt.Name)
	k.log.Debug("context switch", F("from", cur.Name), F("to", nt.Name))
	return nt, true
}

// dispatch hands the CPU to a task: resume it at its park point, or run
// its entry for the first time on a fresh goroutine (its private stack).
func (k *Kernel) dispatch(t *TCB) {
	if t.started {
		t.resume <- struct{}{}
		return
	}
	t.started = true
	k.wg.Add(1)
	go func() {
		defer k.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				k.halt(&Fault{Kind: FaultHard, Reason: fmt.Sprintf("panic in task %q: %v", t.Name, r)})
			}
		}()
		t.Entry(withRuntime(k.taskCtx, k, t))
		// A task body must never return: its fabricated link register
		// points at the exception-return sentinel, not at code.
		select {
		case <-k.stopCh:
		default:
			k.halt(&Fault{Kind: FaultUsage, Reason: fmt.Sprintf("task %q handler returned", t.Name)})
		}
	}()
}

// halt records a terminal fault, reports it, and stops the scheduler. The
// device-level equivalent is a fault handler that prints its kind and
// loops forever.
func (k *Kernel) halt(f *Fault) {
	k.haltOnce.Do(func() {
		k.fault = f
		k.halted.Store(true)
		k.metrics.RecordFault(f.Kind.String())
		k.faults.HandleFault(f)
		k.stopOnce.Do(func() { close(k.stopCh) })
	})
}

func asFault(err error) *Fault {
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	return &Fault{Kind: FaultHard, Reason: err.Error()}
}
