package core

// NextRunnable picks the slot that runs after the current one: round-robin
// starting just past the current index, wrapping modulo the table size,
// scanning at most once around. The idle slot is skipped during the scan
// and chosen only when the full cycle finds no READY user task.
func (s *Store) NextRunnable() TaskID {
	n := len(s.tasks)
	for i := 1; i <= n; i++ {
		id := TaskID((int(s.current) + i) % n)
		if id == IdleTask {
			continue
		}
		if s.tasks[int(id)].State == TaskReady {
			return id
		}
	}
	return IdleTask
}

// setCurrent is called only by the context-switch path after selection.
func (s *Store) setCurrent(id TaskID) { s.current = id }
