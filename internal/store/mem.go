package store

import (
	"context"
	"sync"
)

// Mem is an in-memory Store for tests and local development.
type Mem struct {
	mu   sync.RWMutex
	docs map[string][]byte
	puts int
}

// NewMem returns an empty in-memory store.
func NewMem() *Mem {
	return &Mem{docs: make(map[string][]byte)}
}

func (m *Mem) Get(_ context.Context, path string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	body, ok := m.docs[path]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(body))
	copy(out, body)
	return out, true, nil
}

func (m *Mem) Put(_ context.Context, path string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(body))
	copy(stored, body)
	m.docs[path] = stored
	m.puts++
	return nil
}

// PutCount reports how many writes have landed. Used by tests to wait for
// background persistence.
func (m *Mem) PutCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}
