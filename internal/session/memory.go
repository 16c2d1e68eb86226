package session

import (
	"context"
	"sync"
)

// MemoryStore keeps the session in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	current *Session
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, s Session) error {
	if s.Token == "" {
		return ErrInvalidSession
	}
	m.mu.Lock()
	m.current = &s
	m.mu.Unlock()
	return nil
}

// Current implements Store. The returned value is a copy.
func (m *MemoryStore) Current(_ context.Context) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.current.Valid() {
		return nil, ErrNoSession
	}
	s := *m.current
	return &s, nil
}

// Clear implements Store.
func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
	return nil
}

// CompareAndSwap implements Store.
func (m *MemoryStore) CompareAndSwap(_ context.Context, match func(Session) bool, next *Session) (bool, error) {
	if next != nil && next.Token == "" {
		return false, ErrInvalidSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.current.Valid() || !match(*m.current) {
		return false, nil
	}
	if next == nil {
		m.current = nil
		return true, nil
	}
	s := *next
	m.current = &s
	return true, nil
}
