package core

import "testing"

// Layout checked against the board memory map: 128 KiB of SRAM at
// 0x20000000, 1 KiB per region, five slots.
func TestStackMap_BoardLayout(t *testing.T) {
	sm, err := NewStackMap(0x2000_0000, 0x2002_0000, 1024, 5)
	if err != nil {
		t.Fatalf("NewStackMap failed: %v", err)
	}

	cases := []struct {
		slot int
		want uint32
	}{
		{1, 0x2002_0000},
		{2, 0x2001_FC00},
		{3, 0x2001_F800},
		{4, 0x2001_F400},
		{0, 0x2001_F000}, // idle below the user tasks
	}
	for _, c := range cases {
		if got := sm.TaskStackTop(c.slot); got != c.want {
			t.Errorf("TaskStackTop(%d) = 0x%08X, want 0x%08X", c.slot, got, c.want)
		}
	}
	if got := sm.SchedulerStackTop(); got != 0x2001_EC00 {
		t.Errorf("SchedulerStackTop = 0x%08X, want 0x2001EC00", got)
	}
}

func TestStackMap_RegionsDoNotOverlap(t *testing.T) {
	sm, err := NewStackMap(0x2000_0000, 0x2002_0000, 1024, 5)
	if err != nil {
		t.Fatalf("NewStackMap failed: %v", err)
	}

	type region struct{ limit, top uint32 }
	regions := make([]region, sm.Slots())
	for i := range regions {
		regions[i] = region{sm.TaskStackLimit(i), sm.TaskStackTop(i)}
	}
	for i, a := range regions {
		for j, b := range regions {
			if i == j {
				continue
			}
			if a.limit < b.top && b.limit < a.top {
				t.Errorf("regions %d and %d overlap: [0x%08X,0x%08X) and [0x%08X,0x%08X)",
					i, j, a.limit, a.top, b.limit, b.top)
			}
		}
	}
}

func TestNewStackMap_ConfigurationErrors(t *testing.T) {
	cases := []struct {
		name      string
		start     uint32
		end       uint32
		stackSize uint32
		slots     int
	}{
		{"empty RAM range", 0x2000_0000, 0x2000_0000, 1024, 5},
		{"zero stack size", 0x2000_0000, 0x2002_0000, 0, 5},
		{"unaligned stack size", 0x2000_0000, 0x2002_0000, 1023, 5},
		{"too few slots", 0x2000_0000, 0x2002_0000, 1024, 1},
		{"regions exceed RAM", 0x2000_0000, 0x2000_1000, 1024, 5},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := NewStackMap(c.start, c.end, c.stackSize, c.slots); err == nil {
				t.Error("expected a configuration error")
			}
		})
	}
}
