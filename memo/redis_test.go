// SPDX-License-Identifier: MIT

package memo

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// setupMiniRedis creates a test Redis server using miniredis.
func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	store := &RedisStore{
		client: client,
		logger: zerolog.Nop(),
	}

	return mr, store
}

func TestRedisStore_SetGet(t *testing.T) {
	mr, store := setupMiniRedis(t)
	defer mr.Close()

	store.Set("test-key", []byte("test-value"), 5*time.Minute)

	val, found := store.Get("test-key")
	if !found {
		t.Fatal("expected value to be found")
	}
	if !bytes.Equal(val, []byte("test-value")) {
		t.Errorf("expected 'test-value', got %q", val)
	}

	stats := store.Stats()
	if stats.Sets != 1 {
		t.Errorf("expected 1 set, got %d", stats.Sets)
	}
	if stats.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", stats.Hits)
	}
}

func TestRedisStore_GetMissing(t *testing.T) {
	mr, store := setupMiniRedis(t)
	defer mr.Close()

	val, found := store.Get("nonexistent")
	if found {
		t.Error("expected value to not be found")
	}
	if val != nil {
		t.Errorf("expected nil value, got %v", val)
	}

	stats := store.Stats()
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
}

func TestRedisStore_TTL(t *testing.T) {
	mr, store := setupMiniRedis(t)
	defer mr.Close()

	store.Set("ttl-key", []byte("ttl-value"), 100*time.Millisecond)

	_, found := store.Get("ttl-key")
	if !found {
		t.Fatal("expected value to be found immediately")
	}

	// miniredis requires explicit clock advancement
	mr.FastForward(200 * time.Millisecond)

	_, found = store.Get("ttl-key")
	if found {
		t.Error("expected value to be expired")
	}
}

func TestRedisStore_ZeroTTLPersists(t *testing.T) {
	mr, store := setupMiniRedis(t)
	defer mr.Close()

	store.Set("pinned", []byte("value"), 0)

	mr.FastForward(24 * time.Hour)

	_, found := store.Get("pinned")
	if !found {
		t.Error("expected zero-TTL value to persist")
	}
}

func TestRedisStore_Delete(t *testing.T) {
	mr, store := setupMiniRedis(t)
	defer mr.Close()

	store.Set("del-key", []byte("value"), 5*time.Minute)
	store.Delete("del-key")

	_, found := store.Get("del-key")
	if found {
		t.Error("expected value to be deleted")
	}
}

func TestRedisStore_Clear(t *testing.T) {
	mr, store := setupMiniRedis(t)
	defer mr.Close()

	store.Set("key1", []byte("v1"), 5*time.Minute)
	store.Set("key2", []byte("v2"), 5*time.Minute)
	store.Clear()

	stats := store.Stats()
	if stats.CurrentSize != 0 {
		t.Errorf("expected empty store after clear, got size %d", stats.CurrentSize)
	}
}

func TestRedisStore_ServerDownDegradesToMiss(t *testing.T) {
	mr, store := setupMiniRedis(t)

	store.Set("key", []byte("value"), 5*time.Minute)
	mr.Close()

	// Reads fail soft: a broken connection means a miss, not an error.
	_, found := store.Get("key")
	if found {
		t.Error("expected miss when server is down")
	}
}

func TestRedisStore_HealthCheck(t *testing.T) {
	mr, store := setupMiniRedis(t)
	defer mr.Close()

	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected healthy store, got %v", err)
	}
}
