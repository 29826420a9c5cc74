package token

import (
	"context"
	"fmt"
	"sync"
	"time"

	"maktaba-storefront/internal/domain"
)

// Memory keeps tokens in process; sessions do not survive a restart.
type Memory struct {
	mu     sync.RWMutex
	tokens map[string]Token
}

func NewMemory() *Memory {
	return &Memory{tokens: make(map[string]Token)}
}

func (m *Memory) Create(_ context.Context, token Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[token.Token]; ok {
		return fmt.Errorf("%w: token exists", domain.ErrConflict)
	}
	token.CreatedAt = time.Now()
	m.tokens[token.Token] = token
	return nil
}

func (m *Memory) Get(_ context.Context, token string) (*Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (m *Memory) Extend(_ context.Context, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[token]
	if !ok {
		return domain.ErrNotFound
	}
	t.ExpiresAt = expiresAt
	m.tokens[token] = t
	return nil
}

func (m *Memory) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	delete(m.tokens, token)
	m.mu.Unlock()
	return nil
}

func (m *Memory) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, t := range m.tokens {
		if t.ExpiresAt.Before(now) {
			delete(m.tokens, k)
			n++
		}
	}
	return n, nil
}

var _ Repository = (*Memory)(nil)
