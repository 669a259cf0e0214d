package store

import (
	"context"
	"sync"
)

// MemoryStore implements Store with an in-process map.
// It is the default backend and the closest analog to page-local storage:
// snapshots survive tracker re-construction within one process but not a
// process restart.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
	closed    bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string][]byte),
	}
}

// Save writes the snapshot for a block.
func (s *MemoryStore) Save(ctx context.Context, key string, snapshot []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	buf := make([]byte, len(snapshot))
	copy(buf, snapshot)
	s.snapshots[key] = buf
	return nil
}

// Load retrieves the snapshot for a block.
func (s *MemoryStore) Load(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	snapshot, ok := s.snapshots[key]
	if !ok {
		return nil, ErrStateNotFound
	}

	buf := make([]byte, len(snapshot))
	copy(buf, snapshot)
	return buf, nil
}

// Delete removes the snapshot for a block.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	delete(s.snapshots, key)
	return nil
}

// Close releases the store. Further operations return ErrStoreClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.snapshots = nil
	return nil
}
