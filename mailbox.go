package engine

import "sync"

// mailbox is the single structure any goroutine may write to. The engine
// goroutine is the only reader: it drains the whole buffered slice in one
// shot, under lock, and then runs every entry from the fast queue with the
// lock released.
type mailbox struct {
	mu    sync.Mutex
	tasks []Task
}

// post appends a task to the mailbox. Safe to call from any goroutine,
// including ones other than the engine's own.
func (m *mailbox) post(t Task) {
	m.mu.Lock()
	m.tasks = append(m.tasks, t)
	m.mu.Unlock()
}

// drain removes and returns every pending task, leaving the mailbox empty.
// Called only from the engine goroutine.
func (m *mailbox) drain() []Task {
	m.mu.Lock()
	if len(m.tasks) == 0 {
		m.mu.Unlock()
		return nil
	}
	tasks := m.tasks
	m.tasks = nil
	m.mu.Unlock()
	return tasks
}
