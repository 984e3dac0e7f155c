package artifacts

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps artifacts for the lifetime of the process.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]map[string]Artifact
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]map[string]Artifact),
		now:      time.Now,
	}
}

// Put stores a copy of a, replacing any artifact with the same name.
func (s *MemoryStore) Put(ctx context.Context, a Artifact) error {
	if err := validate(a); err != nil {
		return err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	a.Data = append([]byte(nil), a.Data...)

	s.mu.Lock()
	defer s.mu.Unlock()

	byName, ok := s.sessions[a.SessionID]
	if !ok {
		byName = make(map[string]Artifact)
		s.sessions[a.SessionID] = byName
	}
	byName[a.Name] = a
	return nil
}

// Get returns the named artifact of a session.
func (s *MemoryStore) Get(ctx context.Context, sessionID, name string) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.sessions[sessionID][name]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", sessionID, name, ErrNotFound)
	}
	a.Data = append([]byte(nil), a.Data...)
	return &a, nil
}

// List returns the artifact names of a session matching pattern.
func (s *MemoryStore) List(ctx context.Context, sessionID, pattern string) ([]string, error) {
	s.mu.RLock()
	names := make([]string, 0, len(s.sessions[sessionID]))
	for name := range s.sessions[sessionID] {
		names = append(names, name)
	}
	s.mu.RUnlock()

	return filterNames(names, pattern)
}

// Purge drops every artifact of a session.
func (s *MemoryStore) Purge(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
