package statemachine

import (
	"context"
	"sync"
)

// Machine tracks a current state over a shared Table and keeps the trail of
// applied steps. It is safe for concurrent use.
type Machine[S, E Symbol] struct {
	mu      sync.RWMutex
	table   *Table[S, E]
	initial S
	current S
	trail   []Step[S, E]
}

// NewMachine starts a machine in the initial state.
func NewMachine[S, E Symbol](table *Table[S, E], initial S) *Machine[S, E] {
	return &Machine[S, E]{table: table, initial: initial, current: initial}
}

func (m *Machine[S, E]) Current() S {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Fire applies event to the current state. On error the state is unchanged.
func (m *Machine[S, E]) Fire(ctx context.Context, event E, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	to, err := m.table.Apply(ctx, m.current, event, data)
	if err != nil {
		return err
	}
	m.trail = append(m.trail, Step[S, E]{From: m.current, Event: event, To: to})
	m.current = to
	return nil
}

func (m *Machine[S, E]) CanFire(ctx context.Context, event E, data any) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.table.CanFire(ctx, m.current, event, data)
}

// Trail returns a copy of the applied steps in order.
func (m *Machine[S, E]) Trail() []Step[S, E] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Step[S, E], len(m.trail))
	copy(out, m.trail)
	return out
}

func (m *Machine[S, E]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.initial
	m.trail = nil
}
