package cart

import (
	"context"
	"fmt"
	"sync"

	"maktaba-storefront/internal/domain"
)

// Memory is an in-process Repository used in tests and local development.
type Memory struct {
	mu    sync.RWMutex
	users map[string]map[string]domain.CartLine
}

func NewMemory() *Memory {
	return &Memory{users: make(map[string]map[string]domain.CartLine)}
}

func (m *Memory) GetLine(_ context.Context, userID, bookID string) (*domain.CartLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	line, ok := m.users[userID][bookID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &line, nil
}

func (m *Memory) UpsertLine(_ context.Context, userID string, line domain.CartLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines(userID)[line.BookID] = line
	return nil
}

func (m *Memory) IncrementLine(_ context.Context, userID string, line domain.CartLine, delta int) (*domain.CartLine, error) {
	if delta < 1 || delta > domain.MaxLineQuantity {
		return nil, fmt.Errorf("%w: quantity %d out of range", domain.ErrValidation, delta)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := m.lines(userID)
	if existing, ok := lines[line.BookID]; ok {
		if existing.Quantity > domain.MaxLineQuantity-delta {
			return nil, fmt.Errorf("%w: book %s would exceed %d copies", domain.ErrValidation, line.BookID, domain.MaxLineQuantity)
		}
		existing.Quantity += delta
		lines[line.BookID] = existing
		return &existing, nil
	}
	line.Quantity = delta
	lines[line.BookID] = line
	return &line, nil
}

func (m *Memory) UpdateQuantity(_ context.Context, userID, bookID string, quantity int) (*domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.users[userID][bookID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	existing.Quantity = quantity
	m.users[userID][bookID] = existing
	return &existing, nil
}

func (m *Memory) DeleteLine(_ context.Context, userID, bookID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users[userID], bookID)
	return nil
}

func (m *Memory) DeleteAll(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, userID)
	return nil
}

func (m *Memory) ListLines(_ context.Context, userID string) ([]domain.CartLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.CartLine, 0, len(m.users[userID]))
	for _, l := range m.users[userID] {
		out = append(out, l)
	}
	return out, nil
}

// lines must be called with mu held for writing.
func (m *Memory) lines(userID string) map[string]domain.CartLine {
	lines := m.users[userID]
	if lines == nil {
		lines = make(map[string]domain.CartLine)
		m.users[userID] = lines
	}
	return lines
}

var _ Repository = (*Memory)(nil)
