// Package mailbox implements a single-slot, latest-wins handoff between the
// background loop and a foreground reader.
package mailbox

import "sync"

// Mailbox holds at most one value. Put overwrites, Get peeks without
// consuming, and neither ever waits for the other side.
type Mailbox[T any] struct {
	mu   sync.Mutex
	item T
	has  bool
}

// New returns an empty mailbox.
func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{}
}

// Put stores v, replacing any previous value.
func (m *Mailbox[T]) Put(v T) {
	m.mu.Lock()
	m.item = v
	m.has = true
	m.mu.Unlock()
}

// Get returns the latest value without removing it.
func (m *Mailbox[T]) Get() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.item, m.has
}

// Has reports whether a value is held.
func (m *Mailbox[T]) Has() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.has
}

// Clear empties the mailbox.
func (m *Mailbox[T]) Clear() {
	m.mu.Lock()
	var zero T
	m.item = zero
	m.has = false
	m.mu.Unlock()
}
