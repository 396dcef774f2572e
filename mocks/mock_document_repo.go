package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"firmdocs/internal/domain"
	"firmdocs/internal/port"
)

// MockDocumentRepo is a mock implementation of port.DocumentRepository.
type MockDocumentRepo struct {
	mock.Mock
}

func (m *MockDocumentRepo) CreateWithInitialVersion(ctx context.Context, doc *domain.Document, version *domain.DocumentVersion) error {
	args := m.Called(ctx, doc, version)
	return args.Error(0)
}

func (m *MockDocumentRepo) GetByID(ctx context.Context, tenantID, docID uuid.UUID) (*domain.Document, error) {
	args := m.Called(ctx, tenantID, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepo) AppendVersion(ctx context.Context, tenantID, docID uuid.UUID, build port.VersionBuilder) (*port.AppendResult, error) {
	args := m.Called(ctx, tenantID, docID, build)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.AppendResult), args.Error(1)
}

func (m *MockDocumentRepo) GetVersion(ctx context.Context, tenantID, docID uuid.UUID, version int) (*domain.DocumentVersion, error) {
	args := m.Called(ctx, tenantID, docID, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DocumentVersion), args.Error(1)
}

func (m *MockDocumentRepo) ListVersions(ctx context.Context, tenantID, docID uuid.UUID, before, limit int) ([]domain.DocumentVersion, error) {
	args := m.Called(ctx, tenantID, docID, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DocumentVersion), args.Error(1)
}

func (m *MockDocumentRepo) LatestVersions(ctx context.Context, tenantID, docID uuid.UUID) ([]domain.DocumentVersion, error) {
	args := m.Called(ctx, tenantID, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DocumentVersion), args.Error(1)
}

func (m *MockDocumentRepo) UpdateStatus(ctx context.Context, tenantID, docID uuid.UUID, status domain.DocumentStatus) (domain.DocumentStatus, error) {
	args := m.Called(ctx, tenantID, docID, status)
	return args.Get(0).(domain.DocumentStatus), args.Error(1)
}

func (m *MockDocumentRepo) ListRetentionExpired(ctx context.Context, now time.Time, limit int) ([]domain.Document, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Document), args.Error(1)
}
