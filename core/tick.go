package core

// TickEngine owns the global tick counter and the wake scan that runs on
// every timer interrupt.
type TickEngine struct {
	store *Store
	now   uint64
}

func NewTickEngine(store *Store) *TickEngine {
	return &TickEngine{store: store}
}

// Now returns the current tick count.
func (e *TickEngine) Now() uint64 { return e.now }

// Advance moves time forward by one tick and readies every blocked task
// whose wake tick has arrived. It returns the slots it woke.
//
// The wake check is "due by now", not exact equality, so a tick handler
// that runs late can never strand a sleeper past its wake time. The
// BLOCKED->READY transition fires once per sleep because waking clears
// eligibility.
func (e *TickEngine) Advance() []TaskID {
	e.now++
	var woken []TaskID
	for i, t := range e.store.tasks {
		if t.State == TaskBlocked && t.WakeTick <= e.now {
			t.State = TaskReady
			woken = append(woken, TaskID(i))
		}
	}
	return woken
}
