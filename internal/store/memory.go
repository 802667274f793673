// File: internal/store/memory.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xkilldash9x/mendbot/api/schemas"
)

// MemoryStore is the in-process schemas.SessionStore used when no store
// path is configured, and by tests. Documents are deep-copied through JSON
// so callers never share mutable state with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]byte)}
}

// Create implements schemas.SessionStore.
func (s *MemoryStore) Create(ctx context.Context, sess *schemas.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return fmt.Errorf("session %s already exists", sess.ID)
	}
	return s.put(sess)
}

// Update implements schemas.SessionStore.
func (s *MemoryStore) Update(ctx context.Context, sess *schemas.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(sess)
}

func (s *MemoryStore) put(sess *schemas.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("could not marshal session %s: %w", sess.ID, err)
	}
	s.sessions[sess.ID] = raw
	return nil
}

// Get implements schemas.SessionStore.
func (s *MemoryStore) Get(ctx context.Context, id string) (*schemas.Session, error) {
	s.mu.RLock()
	raw, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, schemas.ErrSessionNotFound
	}
	var sess schemas.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Close implements schemas.SessionStore.
func (s *MemoryStore) Close() error { return nil }
