package gateway

import (
	"sync"
)

// ConnectionManager tracks the live connection handlers across all transports.
type ConnectionManager struct {
	mu    sync.RWMutex
	conns map[string]*ConnectionHandler
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{conns: make(map[string]*ConnectionHandler)}
}

func (m *ConnectionManager) Store(h *ConnectionHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[h.ID] = h
}

func (m *ConnectionManager) Get(id string) (*ConnectionHandler, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.conns[id]
	return h, ok
}

func (m *ConnectionManager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, id)
}

func (m *ConnectionManager) List() []*ConnectionHandler {
	m.mu.RLock()
	defer m.mu.RUnlock()

	handlers := make([]*ConnectionHandler, 0, len(m.conns))
	for _, h := range m.conns {
		handlers = append(handlers, h)
	}
	return handlers
}

func (m *ConnectionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}
