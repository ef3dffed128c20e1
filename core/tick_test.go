package core

import "testing"

func TestTickEngine_AdvanceWakesDueTasks(t *testing.T) {
	store, err := NewStore(makeTCBs(4))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	engine := NewTickEngine(store)

	store.Block(1, 1)
	store.Block(2, 3)

	woken := engine.Advance()
	if engine.Now() != 1 {
		t.Fatalf("Now = %d, want 1", engine.Now())
	}
	if len(woken) != 1 || woken[0] != 1 {
		t.Fatalf("woken = %v, want [1]", woken)
	}
	if store.Task(2).State != TaskBlocked {
		t.Error("task 2 woke before its wake tick")
	}

	if woken = engine.Advance(); len(woken) != 0 {
		t.Fatalf("tick 2 woke %v, want none", woken)
	}
	if woken = engine.Advance(); len(woken) != 1 || woken[0] != 2 {
		t.Fatalf("tick 3 woke %v, want [2]", woken)
	}
}

// TestTickEngine_LateTickNeverStrandsSleeper covers the wake-check
// policy: a sleeper whose wake tick has already passed is still readied,
// so no task remains BLOCKED beyond its wake time.
func TestTickEngine_LateTickNeverStrandsSleeper(t *testing.T) {
	store, err := NewStore(makeTCBs(3))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	engine := NewTickEngine(store)

	engine.Advance()
	engine.Advance()
	// Wake tick 1 is already in the past when the task blocks.
	store.Block(1, 1)

	woken := engine.Advance()
	if len(woken) != 1 || woken[0] != 1 {
		t.Fatalf("woken = %v, want [1]", woken)
	}
	if store.Task(1).State != TaskReady {
		t.Error("task stayed BLOCKED past its wake tick")
	}
}

func TestTickEngine_WakeFiresOnce(t *testing.T) {
	store, err := NewStore(makeTCBs(3))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	engine := NewTickEngine(store)

	store.Block(1, 1)
	if woken := engine.Advance(); len(woken) != 1 {
		t.Fatalf("woken = %v, want one task", woken)
	}
	// Already READY: further ticks must not report it again.
	for i := 0; i < 3; i++ {
		if woken := engine.Advance(); len(woken) != 0 {
			t.Fatalf("tick %d woke %v, want none", engine.Now(), woken)
		}
	}
}
