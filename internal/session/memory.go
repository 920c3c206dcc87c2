package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a non-durable Store used for tests and for deployments that
// opt out of persistence. Sessions are sharded so unrelated sessions never
// serialize against each other.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
}

type memorySession struct {
	mu        sync.RWMutex
	values    map[string]string
	lastWrite time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*memorySession)}
}

func (s *MemoryStore) session(sessionID string, create bool) *memorySession {
	s.mu.RLock()
	sess := s.sessions[sessionID]
	s.mu.RUnlock()
	if sess != nil || !create {
		return sess
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess = s.sessions[sessionID]; sess == nil {
		sess = &memorySession{values: make(map[string]string)}
		s.sessions[sessionID] = sess
	}
	return sess
}

func (s *MemoryStore) Get(ctx context.Context, sessionID, key string) (string, bool, error) {
	sess := s.session(sessionID, false)
	if sess == nil {
		return "", false, nil
	}
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	v, ok := sess.values[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(ctx context.Context, sessionID, key, value string) error {
	sess := s.session(sessionID, true)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.values[key] = value
	sess.lastWrite = time.Now()
	return nil
}

func (s *MemoryStore) List(ctx context.Context, sessionID string) ([]string, error) {
	sess := s.session(sessionID, false)
	if sess == nil {
		return []string{}, nil
	}
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	keys := make([]string, 0, len(sess.values))
	for k := range sess.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID, key string) error {
	sess := s.session(sessionID, false)
	if sess == nil {
		return nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	delete(sess.values, key)
	sess.lastWrite = time.Now()
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
