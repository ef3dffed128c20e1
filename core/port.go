package core

// Resumed describes where an exception return landed: the program counter
// and status word popped from the restored frame.
type Resumed struct {
	PC   uint32
	XPSR uint32
}

// Port is the narrow architecture boundary between the scheduling policy
// and the register-save mechanism. The scheduler only ever saves the
// current context, restores a target context, and latches switch requests;
// everything else about the machine stays behind this interface so the
// policy layer is portable and testable on its own.
//
// The frame a Port fabricates in InitStack and the frame its restore path
// pops are one contract: any change to one must change the other
// identically.
type Port interface {
	// InitStack fabricates the initial exception frame for a task that has
	// never run, starting from the region top recorded in SavedSP, and
	// writes the resulting pointer back to SavedSP. Runs once per task at
	// boot, before any interrupt is armed.
	InitStack(t *TCB, entry uint32) error

	// SaveContext persists the running task's register context onto its
	// stack and records the new stack pointer in the TCB. This is the only
	// code path besides InitStack that writes SavedSP.
	SaveContext(t *TCB) error

	// RestoreContext loads the target task's register context from
	// SavedSP, programs the active stack-pointer register, and performs
	// the exception return. It reports where execution resumed.
	RestoreContext(t *TCB) (Resumed, error)

	// PendSwitch latches a context-switch request. Requesting while one is
	// already pending is a no-op, not an error.
	PendSwitch()

	// TakePendingSwitch consumes the latch, reporting whether a switch was
	// pending.
	TakePendingSwitch() bool

	// EntryAddress returns the code address that stands in for the given
	// slot's entry function in fabricated frames.
	EntryAddress(slot int) uint32
}
