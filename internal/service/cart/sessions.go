package cart

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Sessions hands out one Engine per session id. Engines idle longer than the TTL,
// or pushed out by the size bound, are dropped once no request holds them; the
// next request for that session starts from an anonymous engine and re-merges
// on sign-in.
type Sessions struct {
	deps    Deps
	mu      sync.Mutex
	engines *expirable.LRU[string, *Engine]
	// leased engines stay the only engine of their session even after the LRU
	// lets go of them.
	leased map[string]*lease
}

type lease struct {
	engine *Engine
	refs   int
}

func NewSessions(deps Deps, size int, ttl time.Duration) *Sessions {
	if size <= 0 {
		size = 10000
	}
	return &Sessions{
		deps:    deps,
		engines: expirable.NewLRU[string, *Engine](size, nil, ttl),
		leased:  make(map[string]*lease),
	}
}

// Acquire returns the engine for sessionID, creating it on first use, and the
// func that releases it. Callers must release the engine when the request ends.
func (s *Sessions) Acquire(sessionID string) (*Engine, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leased[sessionID]
	if !ok {
		e, cached := s.engines.Get(sessionID)
		if !cached {
			e = NewEngine(sessionID, s.deps)
		}
		l = &lease{engine: e}
		s.leased[sessionID] = l
	}
	l.refs++
	// re-adding slides the expiry and restores an engine the LRU dropped mid-lease
	s.engines.Add(sessionID, l.engine)

	var once sync.Once
	return l.engine, func() {
		once.Do(func() { s.release(sessionID, l) })
	}
}

func (s *Sessions) release(sessionID string, l *lease) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 && s.leased[sessionID] == l {
		delete(s.leased, sessionID)
	}
}

// Drop forgets the engine for sessionID once its current holders release it.
func (s *Sessions) Drop(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engines.Remove(sessionID)
}
