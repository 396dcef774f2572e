package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"firmdocs/internal/port"
)

// MockIdempotencyStore is a mock implementation of port.IdempotencyStore.
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) Get(ctx context.Context, key string) (*port.IdempotencyRecord, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.IdempotencyRecord), args.Error(1)
}

func (m *MockIdempotencyStore) Put(ctx context.Context, key string, rec port.IdempotencyRecord, ttl time.Duration) error {
	args := m.Called(ctx, key, rec, ttl)
	return args.Error(0)
}
