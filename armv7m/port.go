package armv7m

import (
	"fmt"

	"github.com/minirtos/go-mini-rtos/core"
)

// Exception frame contract, shared with the stack frame initializer: a
// task's saved context is sixteen words, lowest address first:
//
//	R4 R5 R6 R7 R8 R9 R10 R11   callee-saved, pushed by the switch handler
//	R0 R1 R2 R3 R12 LR PC xPSR  hardware frame, stacked on exception entry
//
// Any change to this layout must change both the initializer and the
// save/restore paths identically.
const (
	initialXPSR        uint32 = 0x0100_0000 // Thumb bit set, everything else clear
	excReturnThreadPSP uint32 = 0xFFFF_FFFD // return to thread mode using the process stack

	calleeWords  = 8
	hwFrameWords = 8
	frameBytes   = 4 * (calleeWords + hwFrameWords)

	// Synthetic code addresses for task entries, spaced in flash.
	entryBase   uint32 = FlashBase + 0x100
	entryStride uint32 = 0x80
)

// Registers is the core register file the port maintains. GP holds
// R0..R12; PSP and MSP are the banked stack pointers.
type Registers struct {
	GP   [13]uint32
	PSP  uint32
	MSP  uint32
	LR   uint32
	PC   uint32
	XPSR uint32
}

// Port implements core.Port on simulated core state. It also models the
// small set of system registers the boot code programs: the fault
// enables, the SysTick reload, and the switch-pending latch that stands
// in for ICSR.PENDSVSET.
type Port struct {
	ram  *RAM
	regs Registers

	pendSwitch    bool
	faultsEnabled bool
	systick       SysTick
}

var _ core.Port = (*Port)(nil)

func NewPort(ram *RAM) *Port {
	return &Port{ram: ram}
}

// Registers returns a copy of the register file.
func (p *Port) Registers() Registers { return p.regs }

// EnableFaults enables the configurable fault exceptions (memory, bus,
// usage), as the boot code does before anything else.
func (p *Port) EnableFaults() { p.faultsEnabled = true }

// FaultsEnabled reports whether the configurable faults are enabled.
func (p *Port) FaultsEnabled() bool { return p.faultsEnabled }

// InitSchedulerStack points the main stack pointer at the handler-mode
// stack region.
func (p *Port) InitSchedulerStack(top uint32) error {
	if top < p.ram.Base() || top > p.ram.End() {
		return &core.Fault{Kind: core.FaultBus, Addr: top, Reason: "scheduler stack outside SRAM"}
	}
	p.regs.MSP = top
	return nil
}

// UsePSP switches thread-mode execution onto the process stack and
// enters the boot task directly, without an exception return: the stack
// pointer comes from the task's fabricated frame, the program counter is
// its entry, and the status word carries the Thumb bit. Thread mode never
// executes with an invalid xPSR, so the first context save must already
// capture a restorable status word.
func (p *Port) UsePSP(sp, entry uint32) {
	p.regs.PSP = sp
	p.regs.PC = entry
	p.regs.XPSR = initialXPSR
}

// EntryAddress returns the synthetic flash address standing in for a
// slot's entry function.
func (p *Port) EntryAddress(slot int) uint32 {
	return entryBase + uint32(slot)*entryStride
}

// PendSwitch latches a context-switch request; re-requesting while one
// is pending is a no-op.
func (p *Port) PendSwitch() { p.pendSwitch = true }

// TakePendingSwitch consumes the latch.
func (p *Port) TakePendingSwitch() bool {
	was := p.pendSwitch
	p.pendSwitch = false
	return was
}

// SwitchPending reports the latch without consuming it.
func (p *Port) SwitchPending() bool { return p.pendSwitch }

// InitStack fabricates the initial exception frame for a task that has
// never run, descending from the region top in SavedSP: status word,
// entry address, exception-return link value, then the five auto-restored
// registers and the eight callee-saved registers, all zero. The pointer
// one past the last pushed word becomes the task's saved stack pointer.
func (p *Port) InitStack(t *core.TCB, entry uint32) error {
	sp := t.SavedSP
	push := func(v uint32) error {
		sp -= 4
		return p.ram.Store(sp, v)
	}

	if err := push(initialXPSR); err != nil {
		return err
	}
	if err := push(entry); err != nil {
		return err
	}
	if err := push(excReturnThreadPSP); err != nil {
		return err
	}
	for i := 0; i < 5; i++ { // R12, R3, R2, R1, R0
		if err := push(0); err != nil {
			return err
		}
	}
	for i := 0; i < calleeWords; i++ { // R11..R4
		if err := push(0); err != nil {
			return err
		}
	}

	if sp < t.StackLimit {
		return &core.Fault{Kind: core.FaultMemManage, Addr: sp, Reason: fmt.Sprintf("initial frame for task %q overflows its stack region", t.Name)}
	}
	t.SavedSP = sp
	return nil
}

// SaveContext models exception entry plus the switch handler's register
// save: the hardware stacks the caller-saved frame on the process stack,
// the handler then pushes R4..R11 below it, and the final pointer is
// persisted into the TCB.
func (p *Port) SaveContext(t *core.TCB) error {
	sp := p.regs.PSP

	// Hardware stacking on exception entry: xPSR, PC, LR, R12, R3..R0.
	hw := [hwFrameWords]uint32{
		p.regs.XPSR, p.regs.PC, p.regs.LR, p.regs.GP[12],
		p.regs.GP[3], p.regs.GP[2], p.regs.GP[1], p.regs.GP[0],
	}
	for _, v := range hw {
		sp -= 4
		if err := p.store(t, sp, v); err != nil {
			return err
		}
	}

	// STMDB R0!,{R4-R11}: decrement once, then store ascending.
	sp -= 4 * calleeWords
	for i := 0; i < calleeWords; i++ {
		if err := p.store(t, sp+uint32(4*i), p.regs.GP[4+i]); err != nil {
			return err
		}
	}

	t.SavedSP = sp
	return nil
}

// RestoreContext is the switch handler's restore path plus the exception
// return: pop R4..R11 from the saved pointer, program the process stack
// pointer, then let the "hardware" unstack the caller-saved frame and
// resume at the popped program counter.
func (p *Port) RestoreContext(t *core.TCB) (core.Resumed, error) {
	sp := t.SavedSP

	// LDMIA R0!,{R4-R11}
	for i := 0; i < calleeWords; i++ {
		v, err := p.ram.Load(sp + uint32(4*i))
		if err != nil {
			return core.Resumed{}, err
		}
		p.regs.GP[4+i] = v
	}
	sp += 4 * calleeWords

	// Exception return: unstack R0..R3, R12, LR, PC, xPSR.
	var hw [hwFrameWords]uint32
	for i := 0; i < hwFrameWords; i++ {
		v, err := p.ram.Load(sp + uint32(4*i))
		if err != nil {
			return core.Resumed{}, err
		}
		hw[i] = v
	}
	sp += 4 * hwFrameWords

	p.regs.GP[0], p.regs.GP[1], p.regs.GP[2], p.regs.GP[3] = hw[0], hw[1], hw[2], hw[3]
	p.regs.GP[12] = hw[4]
	p.regs.LR = hw[5]
	p.regs.PC = hw[6]
	p.regs.XPSR = hw[7]

	if p.regs.XPSR&initialXPSR == 0 {
		return core.Resumed{}, &core.Fault{Kind: core.FaultUsage, Addr: p.regs.PC, Reason: "status word lost its Thumb bit on exception return"}
	}

	p.regs.PSP = sp
	return core.Resumed{PC: p.regs.PC, XPSR: p.regs.XPSR}, nil
}

// store writes one word of a task's context, raising a memory-management
// fault when the push would leave the task's stack region.
func (p *Port) store(t *core.TCB, addr, v uint32) error {
	if addr < t.StackLimit {
		return &core.Fault{Kind: core.FaultMemManage, Addr: addr, Reason: fmt.Sprintf("stack overflow in task %q", t.Name)}
	}
	return p.ram.Store(addr, v)
}
