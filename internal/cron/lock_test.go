package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memLockStore struct {
	values map[string]string
}

func newMemLockStore() *memLockStore {
	return &memLockStore{values: make(map[string]string)}
}

func (m *memLockStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, exists := m.values[key]; exists {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memLockStore) Get(ctx context.Context, key string) (string, error) {
	value, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (m *memLockStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func TestRedisLockMutualExclusion(t *testing.T) {
	store := newMemLockStore()
	a, err := NewRedisLock(store, "ct:lock:cron", time.Hour)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	b, _ := NewRedisLock(store, "ct:lock:cron", time.Hour)

	ok, err := a.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	ok, err = b.Acquire(context.Background())
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatal("second instance must not acquire a held lock")
	}

	if err := a.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, _ = b.Acquire(context.Background())
	if !ok {
		t.Fatal("lock must be acquirable after release")
	}
}

func TestRedisLockReleaseRespectsOwnership(t *testing.T) {
	store := newMemLockStore()
	a, _ := NewRedisLock(store, "ct:lock:cron", time.Hour)
	b, _ := NewRedisLock(store, "ct:lock:cron", time.Hour)

	if ok, _ := a.Acquire(context.Background()); !ok {
		t.Fatal("acquire failed")
	}

	// Simulate a's TTL expiring and b taking over.
	delete(store.values, "ct:lock:cron")
	if ok, _ := b.Acquire(context.Background()); !ok {
		t.Fatal("takeover acquire failed")
	}

	// a's stale release must not delete b's lock.
	if err := a.Release(context.Background()); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if _, exists := store.values["ct:lock:cron"]; !exists {
		t.Fatal("stale owner must not release the new holder's lock")
	}
}

func TestRedisLockReleaseWithoutAcquireIsNoop(t *testing.T) {
	lock, _ := NewRedisLock(newMemLockStore(), "ct:lock:cron", time.Hour)
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release without acquire: %v", err)
	}
}
