// Package history keeps a bounded stack of full region snapshots for undo/redo.
package history

import (
	"sync"

	"github.com/my591234-max/autolabeling/internal/domain"
)

const DefaultCapacity = 50

type Manager struct {
	mu       sync.Mutex
	entries  []domain.RegionsByImage
	current  int
	capacity int
}

// New returns a manager seeded with the initial state so the first undo can return to it.
func New(capacity int, initial domain.RegionsByImage) *Manager {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	if initial == nil {
		initial = domain.RegionsByImage{}
	}
	return &Manager{
		entries:  []domain.RegionsByImage{initial.Clone()},
		capacity: capacity,
	}
}

// Push drops the redo tail, appends a copy of the snapshot and evicts the oldest entry when over capacity.
func (m *Manager) Push(snapshot domain.RegionsByImage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries[:m.current+1], snapshot.Clone())
	m.current = len(m.entries) - 1
	if len(m.entries) > m.capacity {
		over := len(m.entries) - m.capacity
		m.entries = append([]domain.RegionsByImage(nil), m.entries[over:]...)
		m.current -= over
	}
}

// Undo moves the pointer back and returns the snapshot to restore. ok is false at the bottom.
func (m *Manager) Undo() (domain.RegionsByImage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == 0 {
		return nil, false
	}
	m.current--
	return m.entries[m.current].Clone(), true
}

// Redo moves the pointer forward and returns the snapshot to restore. ok is false at the top.
func (m *Manager) Redo() (domain.RegionsByImage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current >= len(m.entries)-1 {
		return nil, false
	}
	m.current++
	return m.entries[m.current].Clone(), true
}

func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current > 0
}

func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current < len(m.entries)-1
}

// Len reports the number of stored snapshots, including the current one.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Manager) Position() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Current returns a copy of the snapshot at the pointer, i.e. the last committed state.
func (m *Manager) Current() domain.RegionsByImage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[m.current].Clone()
}
