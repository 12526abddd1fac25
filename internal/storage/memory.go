package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps blobs in memory. Used by tests and local development
// without an object store.
type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemoryStore returns an empty in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Store keeps a copy of the data and returns a synthetic URL.
func (s *MemoryStore) Store(_ context.Context, filename, _ string, data []byte) (string, error) {
	key := uuid.NewString() + "-" + filename
	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	s.blobs[key] = cp
	s.mu.Unlock()

	return "memory://" + key, nil
}

// Get returns a stored blob by key. Test helper.
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[key]
	return b, ok
}

// Len reports the number of stored blobs. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}
