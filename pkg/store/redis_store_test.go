package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	s := NewRedisStoreFromClient(client, "test:", 0)

	t.Cleanup(func() {
		_ = s.Close()
	})

	return mr, s
}

func TestRedisStore_SaveAndLoad(t *testing.T) {
	_, s := setupMiniredis(t)
	ctx := context.Background()

	snapshot := []byte(`{"sessionId":"session_123_abc","blockId":"block-1"}`)
	if err := s.Save(ctx, "block_session_block-1", snapshot); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := s.Load(ctx, "block_session_block-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(loaded) != string(snapshot) {
		t.Errorf("snapshot mismatch: got %s, want %s", loaded, snapshot)
	}
}

func TestRedisStore_LoadNotFound(t *testing.T) {
	_, s := setupMiniredis(t)

	_, err := s.Load(context.Background(), "nonexistent")
	if !errors.Is(err, ErrStateNotFound) {
		t.Errorf("expected ErrStateNotFound, got %v", err)
	}
}

func TestRedisStore_Delete(t *testing.T) {
	_, s := setupMiniredis(t)
	ctx := context.Background()

	if err := s.Save(ctx, "to-delete", []byte("x")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Delete(ctx, "to-delete"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Load(ctx, "to-delete"); !errors.Is(err, ErrStateNotFound) {
		t.Errorf("expected ErrStateNotFound after delete, got %v", err)
	}
}

func TestRedisStore_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreFromClient(client, "test:", time.Minute)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	if err := s.Save(ctx, "expiring", []byte("x")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Snapshot readable before expiry, gone afterwards.
	if _, err := s.Load(ctx, "expiring"); err != nil {
		t.Fatalf("Load before expiry failed: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := s.Load(ctx, "expiring"); !errors.Is(err, ErrStateNotFound) {
		t.Errorf("expected ErrStateNotFound after TTL, got %v", err)
	}
}

func TestRedisStore_Closed(t *testing.T) {
	_, s := setupMiniredis(t)
	ctx := context.Background()

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Close is idempotent.
	if err := s.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	if err := s.Save(ctx, "k", nil); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Save after close error = %v, want ErrStoreClosed", err)
	}
	if _, err := s.Load(ctx, "k"); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Load after close error = %v, want ErrStoreClosed", err)
	}
	if err := s.Ping(ctx); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Ping after close error = %v, want ErrStoreClosed", err)
	}
}

func TestRedisStore_DefaultPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreFromClient(client, "", 0)
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	if err := s.Save(ctx, "block-1", []byte("x")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !mr.Exists("blockpulse:session:block-1") {
		t.Error("expected key under default prefix blockpulse:session:")
	}
}
