package kv

import (
	"bytes"
	"context"
	"sync"
)

// MemoryStore implements Store with a process-local map. Used by tests and
// for ephemeral demo runs.
type MemoryStore struct {
	data map[string][]byte
	m    *sync.RWMutex
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]byte),
		m:    new(sync.RWMutex),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.m.RLock()
	defer s.m.RUnlock()

	value, ok := s.data[key]

	return bytes.Clone(value), ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.m.Lock()
	defer s.m.Unlock()

	s.data[key] = bytes.Clone(value)

	return nil
}

func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.m.Lock()
	defer s.m.Unlock()

	delete(s.data, key)

	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
