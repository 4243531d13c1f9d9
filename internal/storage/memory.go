package storage

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, sessionID, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[sessionID][key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, sessionID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.values[sessionID]
	if !ok {
		m = make(map[string]string)
		s.values[sessionID] = m
	}
	m[key] = value
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.values[sessionID]
	if !ok {
		return nil
	}
	delete(m, key)
	if len(m) == 0 {
		delete(s.values, sessionID)
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }
