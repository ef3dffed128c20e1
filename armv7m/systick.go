package armv7m

import (
	"fmt"
	"time"
)

// SysTickClockHz is the timer clock of the modeled part: the 16 MHz
// internal oscillator feeding SysTick directly.
const SysTickClockHz uint32 = 16_000_000

// maxReload is the 24-bit limit of the SysTick reload register.
const maxReload uint32 = 0x00FF_FFFF

// SysTick models the timer registers the boot code programs: the reload
// value and the enable/interrupt/clock-source bits.
type SysTick struct {
	Reload    uint32
	Enabled   bool
	TickInt   bool
	CoreClock bool
}

// ReloadValue converts a tick frequency into the reload register value,
// (clock / tickHz) - 1, validating it against the 24-bit counter.
func ReloadValue(clockHz, tickHz uint32) (uint32, error) {
	if clockHz == 0 || tickHz == 0 {
		return 0, fmt.Errorf("systick: clock %d Hz / tick %d Hz is not a valid rate", clockHz, tickHz)
	}
	if tickHz > clockHz {
		return 0, fmt.Errorf("systick: tick rate %d Hz exceeds the %d Hz timer clock", tickHz, clockHz)
	}
	reload := clockHz/tickHz - 1
	if reload > maxReload {
		return 0, fmt.Errorf("systick: reload %d exceeds the 24-bit counter", reload)
	}
	return reload, nil
}

// ArmSysTick programs and enables the tick timer.
func (p *Port) ArmSysTick(reload uint32) error {
	if reload > maxReload {
		return fmt.Errorf("systick: reload %d exceeds the 24-bit counter", reload)
	}
	p.systick = SysTick{Reload: reload, Enabled: true, TickInt: true, CoreClock: true}
	return nil
}

// TickInterval returns the wall-clock duration of one tick for the
// programmed reload value.
func (p *Port) TickInterval(clockHz uint32) time.Duration {
	if clockHz == 0 || !p.systick.Enabled {
		return 0
	}
	return time.Duration(uint64(p.systick.Reload+1) * uint64(time.Second) / uint64(clockHz))
}

// Timer returns the programmed SysTick state.
func (p *Port) Timer() SysTick { return p.systick }
