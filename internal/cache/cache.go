// Package cache holds client-local session snapshots so a restarted client
// can find its way back to a match. Entries are caches only, never a
// durability guarantee; controllers must prefer a fresh poll whenever
// correctness matters.
package cache

import (
	"context"
	"sync"

	"github.com/braintease/quizlink/internal/domain"
)

// Keys mirror the slots the browser client kept in session storage.
const (
	KeyCreatedSession = "created_session"
	KeyCurrentSession = "current_session"
	KeyCreatedCode    = "created_join_code"
	KeyCurrentCode    = "current_join_code"
)

type Store interface {
	PutSession(ctx context.Context, key string, s *domain.Session) error
	// GetSession returns ok=false when the key has no cached snapshot.
	GetSession(ctx context.Context, key string) (*domain.Session, bool, error)
	PutCode(ctx context.Context, key, code string) error
	GetCode(ctx context.Context, key string) (string, bool, error)
	Clear(ctx context.Context) error
}

// Memory is the in-process default, scoped to one client run.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	codes    map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]domain.Session),
		codes:    make(map[string]string),
	}
}

func (m *Memory) PutSession(_ context.Context, key string, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[key] = *s
	return nil
}

func (m *Memory) GetSession(_ context.Context, key string) (*domain.Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[key]
	if !ok {
		return nil, false, nil
	}

	cp := s
	return &cp, true, nil
}

func (m *Memory) PutCode(_ context.Context, key, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.codes[key] = code
	return nil
}

func (m *Memory) GetCode(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	code, ok := m.codes[key]
	return code, ok, nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions = make(map[string]domain.Session)
	m.codes = make(map[string]string)
	return nil
}
