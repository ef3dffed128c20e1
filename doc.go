// Package minirtos is a cooperative, single-core task scheduler modeled
// on a tiny Cortex-M RTOS: a fixed set of tasks, each with a private
// stack, switched on a timer tick and on voluntary blocking calls.
//
// The scheduling policy (task table, tick engine, round-robin selector,
// blocking sleep) lives in the core package and is portable; the
// register-save mechanism (fabricated exception frames, callee-saved
// push/pop, exception return) lives in the armv7m package behind the
// narrow core.Port interface. Task bodies run on their own goroutines,
// one at a time, gated by the kernel.
//
// # Quick Start
//
// Assemble the demo system and run it:
//
//	sys, err := minirtos.New(minirtos.Options{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//	sys.Run(ctx)
//
// Four blinker tasks toggle the board LEDs at distinct rates; the idle
// task takes every tick on which all of them sleep.
//
// # Key Concepts
//
// TCB: per-task record holding the saved stack pointer, wake tick, run
// state, and entry function. Slot 0 is the idle task and is always READY.
//
// Tick: one timer interrupt. The tick handler advances the counter,
// readies due sleepers, and requests a context switch; the switch itself
// runs only after interrupt work completes.
//
// Runtime.Sleep: the only blocking call. It records the wake tick, marks
// the task BLOCKED, and yields inside a critical section, so the switch
// fires only once the task's own state is fully written.
//
// # Determinism
//
// Kernel.Tick delivers one tick and returns after every resulting switch
// and resumed task has settled, which makes whole-system behavior
// reproducible in tests; System.Run drives the same path from a
// wall-clock timer.
package minirtos
