package localcart

import (
	"context"
	"sync"

	"maktaba-storefront/internal/domain"
)

// Memory is a process-local Store.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string][]domain.CartLine
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[string][]domain.CartLine)}
}

func (m *Memory) Read(_ context.Context, sessionID string) ([]domain.CartLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lines, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return append([]domain.CartLine(nil), lines...), nil
}

func (m *Memory) Write(_ context.Context, sessionID string, lines []domain.CartLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(lines) == 0 {
		delete(m.sessions, sessionID)
		return nil
	}
	m.sessions[sessionID] = append([]domain.CartLine(nil), lines...)
	return nil
}

func (m *Memory) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

var _ Store = (*Memory)(nil)
