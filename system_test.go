package minirtos

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minirtos/go-mini-rtos/armv7m"
	"github.com/minirtos/go-mini-rtos/board"
	"github.com/minirtos/go-mini-rtos/config"
	"github.com/minirtos/go-mini-rtos/core"
)

func newTestSystem(t *testing.T, cfg config.Config) *System {
	t.Helper()
	sys, err := New(Options{Config: cfg, Logger: core.NewNoOpLogger()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return sys
}

// TestSystem_BlinkPattern boots two blinkers and replays two seconds of
// ticks. The LED event log must carry the exact toggle schedule: the
// pattern is fully determined by the tick stream.
func TestSystem_BlinkPattern(t *testing.T) {
	cfg := config.Config{
		TickHz:    1000,
		ClockHz:   16_000_000,
		StackSize: 1024,
		Tasks: []config.TaskConfig{
			{Name: "green", LED: board.LEDGreen, Period: 1000},
			{Name: "orange", LED: board.LEDOrange, Period: 500},
		},
	}
	sys := newTestSystem(t, cfg)
	defer sys.Stop()

	if err := sys.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := sys.Kernel.AdvanceTicks(2000); err != nil {
		t.Fatalf("AdvanceTicks failed: %v", err)
	}

	wantGreen := []board.Event{
		{Pin: board.LEDGreen, On: true, Tick: 0},
		{Pin: board.LEDGreen, On: false, Tick: 1000},
		{Pin: board.LEDGreen, On: true, Tick: 2000},
	}
	wantOrange := []board.Event{
		{Pin: board.LEDOrange, On: true, Tick: 0},
		{Pin: board.LEDOrange, On: false, Tick: 500},
		{Pin: board.LEDOrange, On: true, Tick: 1000},
		{Pin: board.LEDOrange, On: false, Tick: 1500},
		{Pin: board.LEDOrange, On: true, Tick: 2000},
	}
	checkEvents(t, "green", sys.LEDs.EventsFor(board.LEDGreen), wantGreen)
	checkEvents(t, "orange", sys.LEDs.EventsFor(board.LEDOrange), wantOrange)

	stats := sys.Kernel.Stats()
	if stats.Tick != 2000 {
		t.Errorf("Tick = %d, want 2000", stats.Tick)
	}
	if stats.CurrentTask != "idle" {
		t.Errorf("CurrentTask = %q, want idle between wakeups", stats.CurrentTask)
	}
	if stats.Halted {
		t.Error("kernel halted during a clean run")
	}
	if stats.IdleEntries == 0 {
		t.Error("idle task never selected over 2000 mostly-empty ticks")
	}
}

func checkEvents(t *testing.T, name string, got, want []board.Event) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("%s events = %v, want %v", name, got, want)
		return
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s events = %v, want %v", name, got, want)
			return
		}
	}
}

// TestSystem_DefaultConfigBoots: the stock four-LED demo layout boots and
// every LED comes on at tick zero, green first by slot order.
func TestSystem_DefaultConfigBoots(t *testing.T) {
	sys := newTestSystem(t, config.Default())
	defer sys.Stop()

	if err := sys.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	events := sys.LEDs.Events()
	if len(events) != 4 {
		t.Fatalf("boot events = %v, want all four LEDs on", events)
	}
	if events[0].Pin != board.LEDGreen {
		t.Errorf("first event on pin %d, want green (slot 1 runs first)", events[0].Pin)
	}
	for _, e := range events {
		if !e.On || e.Tick != 0 {
			t.Errorf("boot event %+v, want on at tick 0", e)
		}
	}

	tasks := sys.Kernel.Tasks()
	if len(tasks) != 5 {
		t.Fatalf("task table has %d slots, want idle plus four blinkers", len(tasks))
	}
	if tasks[0].Name != "idle" || tasks[0].State != core.TaskReady {
		t.Errorf("slot 0 = %+v, want idle READY", tasks[0])
	}
	for _, ts := range tasks[1:] {
		if ts.State != core.TaskBlocked {
			t.Errorf("task %q not asleep after boot", ts.Name)
		}
	}
}

// TestSystem_BootProgramsTheHardware checks the register-level side of
// New: faults enabled, SysTick armed for the configured rate, MSP below
// the task stacks, PSP on the first task's frame.
func TestSystem_BootProgramsTheHardware(t *testing.T) {
	sys := newTestSystem(t, config.Default())
	defer sys.Stop()

	if !sys.Port.FaultsEnabled() {
		t.Error("configurable faults not enabled at boot")
	}
	st := sys.Port.Timer()
	if !st.Enabled || !st.TickInt || st.Reload != 15999 {
		t.Errorf("SysTick = %+v, want armed with reload 15999 for 1 kHz at 16 MHz", st)
	}

	regs := sys.Port.Registers()
	// Five task regions of 1 KiB descend from the top of SRAM; the
	// scheduler stack sits below all of them.
	if want := armv7m.SRAMEnd - 5*1024; regs.MSP != want {
		t.Errorf("MSP = 0x%08X, want 0x%08X", regs.MSP, want)
	}
	// The first task's fabricated frame is sixteen words below its region
	// top.
	if want := armv7m.SRAMEnd - 64; regs.PSP != want {
		t.Errorf("PSP = 0x%08X, want 0x%08X", regs.PSP, want)
	}
	// The boot task is entered directly, so thread-mode state must be
	// seeded by hand: PC at its entry, Thumb bit set. Without it the first
	// context save stacks an invalid status word and the task usage-faults
	// when restored.
	if want := sys.Port.EntryAddress(1); regs.PC != want {
		t.Errorf("PC = 0x%08X, want slot 1 entry 0x%08X", regs.PC, want)
	}
	if regs.XPSR&0x0100_0000 == 0 {
		t.Errorf("xPSR = 0x%08X, Thumb bit not set at boot", regs.XPSR)
	}
}

func TestSystem_RunStopsOnContextCancel(t *testing.T) {
	sys := newTestSystem(t, config.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := sys.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run = %v, want context.DeadlineExceeded", err)
	}
	if tick := sys.Kernel.Stats().Tick; tick == 0 {
		t.Error("no ticks delivered over 50ms of wall-clock running")
	}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	if _, err := New(Options{Config: config.Config{TickHz: 1000}}); err == nil {
		t.Error("expected an error for a config with no tasks")
	}
}
