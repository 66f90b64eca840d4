package stage

import (
	"sync"

	"github.com/google/uuid"
)

// Registry holds the live stage machine for each session (thread-safe).
// Only the server process holds machines; every other observer is a
// read-only subscriber of published snapshots.
type Registry struct {
	mu       sync.RWMutex
	machines map[uuid.UUID]*Machine
}

// NewRegistry creates an empty machine registry.
func NewRegistry() *Registry {
	return &Registry{machines: make(map[uuid.UUID]*Machine)}
}

// Get returns the machine for a session, if present.
func (r *Registry) Get(sessionID uuid.UUID) (*Machine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.machines[sessionID]
	return m, ok
}

// Put registers a machine for a session, replacing any existing one.
func (r *Registry) Put(sessionID uuid.UUID, m *Machine) {
	r.mu.Lock()
	old := r.machines[sessionID]
	r.machines[sessionID] = m
	r.mu.Unlock()
	if old != nil && old != m {
		old.Close()
	}
}

// Remove drops a session's machine and releases its timer.
func (r *Registry) Remove(sessionID uuid.UUID) {
	r.mu.Lock()
	m := r.machines[sessionID]
	delete(r.machines, sessionID)
	r.mu.Unlock()
	if m != nil {
		m.Close()
	}
}
