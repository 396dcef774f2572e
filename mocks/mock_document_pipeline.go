package mocks

import (
	"context"
	"iter"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"firmdocs/internal/domain"
	"firmdocs/internal/service"
)

// MockDocumentPipeline is a mock implementation of service.DocumentPipeline.
type MockDocumentPipeline struct {
	mock.Mock
}

func (m *MockDocumentPipeline) Upload(ctx context.Context, actor *domain.Actor, input *service.UploadInput) (*service.VersionResult, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.VersionResult), args.Error(1)
}

func (m *MockDocumentPipeline) CreateVersion(ctx context.Context, actor *domain.Actor, input *service.CreateVersionInput) (*service.VersionResult, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.VersionResult), args.Error(1)
}

func (m *MockDocumentPipeline) RestoreVersion(ctx context.Context, actor *domain.Actor, input *service.RestoreVersionInput) (*service.VersionResult, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.VersionResult), args.Error(1)
}

func (m *MockDocumentPipeline) ListVersions(ctx context.Context, actor *domain.Actor, docID uuid.UUID) (iter.Seq2[domain.DocumentVersion, error], error) {
	args := m.Called(ctx, actor, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(iter.Seq2[domain.DocumentVersion, error]), args.Error(1)
}

func (m *MockDocumentPipeline) ArchiveDocument(ctx context.Context, actor *domain.Actor, docID uuid.UUID) (*domain.Document, error) {
	args := m.Called(ctx, actor, docID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentPipeline) QueryAuditLog(ctx context.Context, actor *domain.Actor, filter domain.AuditFilter) (iter.Seq2[domain.AuditLogEntry, error], error) {
	args := m.Called(ctx, actor, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(iter.Seq2[domain.AuditLogEntry, error]), args.Error(1)
}

func (m *MockDocumentPipeline) VerifyAuditChain(ctx context.Context, actor *domain.Actor) (*domain.ChainVerification, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChainVerification), args.Error(1)
}
