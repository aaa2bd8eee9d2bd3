package tradelog

import "sync"

// MemoryLog keeps entries in memory with the same bounded oldest-first
// rotation as the file backends. Used in tests and dry runs.
type MemoryLog struct {
	mu         sync.Mutex
	entries    []Entry
	maxEntries int
}

// NewMemory builds an in-memory log; maxEntries <= 0 means unbounded.
func NewMemory(maxEntries int) *MemoryLog {
	return &MemoryLog{maxEntries: maxEntries}
}

func (l *MemoryLog) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, e)
	if l.maxEntries > 0 && len(l.entries) > l.maxEntries {
		l.entries = l.entries[len(l.entries)-l.maxEntries:]
	}
	return nil
}

// Entries returns a copy of the stored entries in append order.
func (l *MemoryLog) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *MemoryLog) Close() error { return nil }
