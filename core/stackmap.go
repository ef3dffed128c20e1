package core

import "fmt"

// StackMap is the static table of per-slot stack regions: fixed-size
// regions laid out descending from the top of RAM. The first user task
// owns the topmost region, further user tasks follow downward, the idle
// task sits below them, and the scheduler (handler-mode) stack is below
// the idle region. Regions cannot overlap by construction; NewStackMap
// rejects layouts that fall outside RAM before the kernel ever runs.
type StackMap struct {
	ramStart  uint32
	ramEnd    uint32
	stackSize uint32
	slots     int
}

// NewStackMap validates and builds the region table for the given task
// count (including the idle slot). One extra region below the tasks is
// reserved for the scheduler stack.
func NewStackMap(ramStart, ramEnd, stackSize uint32, slots int) (*StackMap, error) {
	if ramEnd <= ramStart {
		return nil, fmt.Errorf("stack map: RAM range 0x%08X..0x%08X is empty", ramStart, ramEnd)
	}
	if stackSize == 0 || stackSize%8 != 0 {
		return nil, fmt.Errorf("stack map: stack size %d is not a positive multiple of 8", stackSize)
	}
	if slots < 2 {
		return nil, fmt.Errorf("stack map: need the idle slot and at least one user task, got %d slots", slots)
	}
	need := uint64(slots+1) * uint64(stackSize)
	if need > uint64(ramEnd-ramStart) {
		return nil, fmt.Errorf("stack map: %d regions of %d bytes exceed the %d bytes of RAM", slots+1, stackSize, ramEnd-ramStart)
	}
	return &StackMap{ramStart: ramStart, ramEnd: ramEnd, stackSize: stackSize, slots: slots}, nil
}

func (m *StackMap) Slots() int        { return m.slots }
func (m *StackMap) StackSize() uint32 { return m.stackSize }

// TaskStackTop returns the initial (highest) stack address for a slot.
// Stacks are full-descending: the first push lands just below this
// address.
func (m *StackMap) TaskStackTop(slot int) uint32 {
	if slot == int(IdleTask) {
		return m.ramEnd - uint32(m.slots-1)*m.stackSize
	}
	return m.ramEnd - uint32(slot-1)*m.stackSize
}

// TaskStackLimit returns the lowest address a slot's stack may grow to.
func (m *StackMap) TaskStackLimit(slot int) uint32 {
	return m.TaskStackTop(slot) - m.stackSize
}

// SchedulerStackTop returns the initial handler-mode stack address, below
// every task region.
func (m *StackMap) SchedulerStackTop() uint32 {
	return m.ramEnd - uint32(m.slots)*m.stackSize
}
