package audit

import "github.com/sasha-s/go-deadlock"

// Memory keeps the most recent events in a ring, for the CLI and for tests.
type Memory struct {
	mutex  *deadlock.Mutex
	events []Event
	next   int
	full   bool
}

func NewMemory(capacity int) *Memory {
	if capacity < 1 {
		capacity = 1
	}
	return &Memory{
		mutex:  &deadlock.Mutex{},
		events: make([]Event, capacity),
	}
}

func (m *Memory) Record(e Event) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.events[m.next] = e
	m.next++
	if m.next == len(m.events) {
		m.next = 0
		m.full = true
	}
}

// Events returns the retained events, oldest first.
func (m *Memory) Events() []Event {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if !m.full {
		out := make([]Event, m.next)
		copy(out, m.events[:m.next])
		return out
	}
	out := make([]Event, 0, len(m.events))
	out = append(out, m.events[m.next:]...)
	out = append(out, m.events[:m.next]...)
	return out
}

// OfKind filters the retained events.
func (m *Memory) OfKind(kind Kind) []Event {
	var out []Event
	for _, e := range m.Events() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
