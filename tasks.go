package minirtos

import (
	"context"

	"github.com/minirtos/go-mini-rtos/board"
	"github.com/minirtos/go-mini-rtos/core"
)

// Blinker returns a task body that toggles one LED forever: drive the
// pin, sleep for the period, release the pin, sleep again. The loop only
// exits when the kernel shuts down.
func Blinker(leds *board.LEDBank, pin uint8, period uint64) core.TaskFunc {
	return func(ctx context.Context) {
		rt := core.FromContext(ctx)
		for {
			leds.On(pin)
			if rt.Sleep(period) != nil {
				return
			}
			leds.Off(pin)
			if rt.Sleep(period) != nil {
				return
			}
		}
	}
}

// Idle returns the idle task body: halt until the next interrupt, then
// loop. It never blocks, so the selector always has a fallback.
func Idle() core.TaskFunc {
	return func(ctx context.Context) {
		rt := core.FromContext(ctx)
		for {
			if rt.WaitForInterrupt() != nil {
				return
			}
		}
	}
}
