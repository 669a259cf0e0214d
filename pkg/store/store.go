// Package store provides durable key-value snapshot storage for block
// sessions. Snapshots are opaque JSON blobs keyed by block ID; the tracker
// writes one snapshot per mutation and reads it back on construction to
// resume a session across page reloads.
package store

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	// ErrStateNotFound is returned when no snapshot exists for a block.
	ErrStateNotFound = errors.New("session state not found")
	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("store is closed")
)

// Store abstracts session snapshot persistence.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save writes the snapshot for a block, replacing any previous one.
	Save(ctx context.Context, key string, snapshot []byte) error

	// Load retrieves the snapshot for a block.
	// Returns ErrStateNotFound if no snapshot exists.
	Load(ctx context.Context, key string) ([]byte, error)

	// Delete removes the snapshot for a block.
	// Deleting a missing snapshot is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}
