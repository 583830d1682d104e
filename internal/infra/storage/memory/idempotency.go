package memory

import (
	"context"
	"sync"
	"time"

	"glampstay/internal/app/middleware"
)

type idempotencyEntry struct {
	rec       middleware.IdempotencyRecord
	completed bool
	expiresAt time.Time
}

// IdempotencyStore stores results in memory.
type IdempotencyStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]idempotencyEntry
	now   func() time.Time
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{ttl: ttl, items: make(map[string]idempotencyEntry), now: time.Now}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.live(key)
	if !ok || !entry.completed {
		return middleware.IdempotencyRecord{}, false, nil
	}
	return entry.rec, true, nil
}

func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(key); ok {
		return false, nil
	}
	s.items[key] = idempotencyEntry{rec: middleware.IdempotencyRecord{Key: key}, expiresAt: s.now().Add(s.ttl)}
	return true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[rec.Key] = idempotencyEntry{rec: rec, completed: true, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.items[key]; ok && !entry.completed {
		delete(s.items, key)
	}
	return nil
}

func (s *IdempotencyStore) live(key string) (idempotencyEntry, bool) {
	entry, ok := s.items[key]
	if !ok {
		return entry, false
	}
	if s.now().After(entry.expiresAt) {
		delete(s.items, key)
		return entry, false
	}
	return entry, true
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
