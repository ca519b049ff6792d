package booking

import (
	"sync"

	"citabot/internal/domain"
)

// MemoryStore is the in-process session store: one session per phone
// number, created on first access. Safe for concurrent use across keys;
// per-key write discipline is the dispatcher's responsibility.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*domain.Session)}
}

// Get returns the existing session or creates a fresh IDLE one. Never fails.
func (m *MemoryStore) Get(userID string) *domain.Session {
	m.mu.RLock()
	s, ok := m.sessions[userID]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s
	}
	s = domain.NewSession(userID)
	m.sessions[userID] = s
	return s
}

// Reset overwrites the session with a fresh IDLE one, discarding all
// accumulated data. Idempotent.
func (m *MemoryStore) Reset(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = domain.NewSession(userID)
}

func (m *MemoryStore) Delete(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
