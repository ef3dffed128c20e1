// Package board models the peripherals of the STM32F407 discovery board
// the scheduler demo drives: the four user LEDs on GPIO port D. The
// driver is register-level (mode and output-data registers) so task
// bodies interact with it exactly the way the firmware does, and it
// keeps a change history so tests and demos can observe blink patterns.
package board

import "sync"

// Pin numbers of the user LEDs on GPIO port D.
const (
	LEDGreen  uint8 = 12
	LEDOrange uint8 = 13
	LEDRed    uint8 = 14
	LEDBlue   uint8 = 15
)

// Default blink periods in ticks. At the 1 kHz tick rate one tick is one
// millisecond.
const (
	PeriodGreen  uint64 = 1000
	PeriodOrange uint64 = 500
	PeriodBlue   uint64 = 250
	PeriodRed    uint64 = 125
)

// Event records one observable output change.
type Event struct {
	Pin  uint8
	On   bool
	Tick uint64
}

// LEDBank is the GPIO port D model. Like the real peripheral, writes are
// ignored until InitAll has enabled the port clock and configured the
// pins as outputs.
type LEDBank struct {
	mu           sync.Mutex
	clockEnabled bool
	moder        uint32
	odr          uint32
	now          func() uint64
	events       []Event
}

func NewLEDBank() *LEDBank {
	return &LEDBank{}
}

// SetClock installs the tick source used to stamp output events.
// Optional; without it events carry tick zero.
func (b *LEDBank) SetClock(now func() uint64) {
	b.mu.Lock()
	b.now = now
	b.mu.Unlock()
}

// InitAll enables the port clock, configures the four LED pins as
// push-pull outputs, and turns every LED off. Runs once at startup from
// the boot path, never from interrupt context.
func (b *LEDBank) InitAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clockEnabled = true
	for _, pin := range []uint8{LEDGreen, LEDOrange, LEDRed, LEDBlue} {
		b.moder &^= 0x3 << (2 * pin)
		b.moder |= 0x1 << (2 * pin) // general-purpose output
	}
	b.odr = 0
}

// On drives the pin high.
func (b *LEDBank) On(pin uint8) { b.write(pin, true) }

// Off drives the pin low.
func (b *LEDBank) Off(pin uint8) { b.write(pin, false) }

func (b *LEDBank) write(pin uint8, on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.clockEnabled || b.moder>>(2*pin)&0x3 != 0x1 {
		// Unclocked or misconfigured pin: the write goes nowhere.
		return
	}
	before := b.odr
	if on {
		b.odr |= 1 << pin
	} else {
		b.odr &^= 1 << pin
	}
	if b.odr == before {
		return
	}
	var tick uint64
	if b.now != nil {
		tick = b.now()
	}
	b.events = append(b.events, Event{Pin: pin, On: on, Tick: tick})
}

// IsOn reports the output state of a pin.
func (b *LEDBank) IsOn(pin uint8) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.odr>>pin&1 == 1
}

// ODR returns the raw output-data register.
func (b *LEDBank) ODR() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.odr
}

// Events returns a copy of the recorded output changes.
func (b *LEDBank) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// EventsFor returns the recorded changes of one pin.
func (b *LEDBank) EventsFor(pin uint8) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Event
	for _, e := range b.events {
		if e.Pin == pin {
			out = append(out, e)
		}
	}
	return out
}
