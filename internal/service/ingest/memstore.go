package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ignite/paybench/internal/service/upload"
)

// MemoryStore keeps sessions and progress in process. It stores JSON copies
// so callers never share state with the store, like the Redis store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
	progress map[string]upload.Progress
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]byte),
		progress: make(map[string]upload.Progress),
	}
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	m.mu.Lock()
	m.sessions[s.ID] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	data, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &s, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	delete(m.progress, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Publish(_ context.Context, sessionID string, p upload.Progress) error {
	m.mu.Lock()
	m.progress[sessionID] = p
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) (*upload.Progress, error) {
	m.mu.RLock()
	p, ok := m.progress[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no progress for %s", ErrSessionNotFound, sessionID)
	}
	return &p, nil
}
