package store

import (
	"errors"
	"sync"
)

// ErrClosed is returned by a Memory store after Close.
var ErrClosed = errors.New("store: closed")

// Memory keeps the snapshot in process. It backs tests and one-shot CLI runs
// that should not touch disk.
type Memory struct {
	mu     sync.Mutex
	snap   Snapshot
	saves  int
	closed bool
}

func NewMemory() *Memory {
	return &Memory{snap: NewSnapshot()}
}

func (m *Memory) Load() (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Snapshot{}, ErrClosed
	}
	return m.snap.Clone(), nil
}

func (m *Memory) Save(snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.snap = snap.Clone()
	m.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
