package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrInvalidKey is returned when a storage key contains unsafe characters.
var ErrInvalidKey = errors.New("invalid storage key: contains path separator or traversal sequence")

// validateKey checks that a string is safe to use as a file name component.
// It rejects empty strings, path separators, and traversal sequences.
func validateKey(key string) error {
	if key == "" {
		return errors.New("storage key cannot be empty")
	}
	if strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}

// FileStore implements Store using one JSON file per block. Storage layout:
//
//	~/.blockpulse/sessions/
//	  └── <key>.json
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
	closed  bool
}

// NewFileStore creates a new file-based snapshot store.
// If baseDir is empty, uses ~/.blockpulse/sessions.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".blockpulse", "sessions")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}

	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.baseDir, key+".json")
}

// Save writes the snapshot for a block, replacing any previous one.
func (s *FileStore) Save(ctx context.Context, key string, snapshot []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if err := validateKey(key); err != nil {
		return fmt.Errorf("invalid key: %w", err)
	}

	if err := os.WriteFile(s.path(key), snapshot, 0600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Load retrieves the snapshot for a block.
func (s *FileStore) Load(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if err := validateKey(key); err != nil {
		return nil, fmt.Errorf("invalid key: %w", err)
	}

	data, err := os.ReadFile(s.path(key)) // #nosec G304 - key validated to prevent traversal
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

// Delete removes the snapshot for a block.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if err := validateKey(key); err != nil {
		return fmt.Errorf("invalid key: %w", err)
	}

	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// Close releases the store.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
