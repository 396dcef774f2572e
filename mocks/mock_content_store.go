package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"firmdocs/internal/domain"
	"firmdocs/internal/service"
)

// MockContentStore is a mock implementation of service.ContentStore.
type MockContentStore struct {
	mock.Mock
}

func (m *MockContentStore) Store(ctx context.Context, input service.ContentInput) (*domain.FileRef, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FileRef), args.Error(1)
}

func (m *MockContentStore) Discard(ctx context.Context, ref *domain.FileRef) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}
