package memory

import (
	"context"
	"sync"
	"time"

	"firmdocs/internal/domain"
	"firmdocs/internal/port"
)

type idempotencyItem struct {
	rec       port.IdempotencyRecord
	expiresAt time.Time
}

type idempotencyStore struct {
	mu    sync.Mutex
	items map[string]idempotencyItem
	now   func() time.Time
}

// NewIdempotencyStore creates an in-process IdempotencyStore.
func NewIdempotencyStore() port.IdempotencyStore {
	return &idempotencyStore{
		items: make(map[string]idempotencyItem),
		now:   time.Now,
	}
}

func (s *idempotencyStore) Get(_ context.Context, key string) (*port.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !item.expiresAt.IsZero() && !s.now().Before(item.expiresAt) {
		delete(s.items, key)
		return nil, domain.ErrNotFound
	}
	rec := item.rec
	return &rec, nil
}

func (s *idempotencyStore) Put(_ context.Context, key string, rec port.IdempotencyRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if item, ok := s.items[key]; ok && (item.expiresAt.IsZero() || now.Before(item.expiresAt)) {
		return nil
	}
	var expires time.Time
	if ttl > 0 {
		expires = now.Add(ttl)
	}
	s.items[key] = idempotencyItem{rec: rec, expiresAt: expires}
	return nil
}
