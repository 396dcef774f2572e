package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"firmdocs/internal/domain"
)

// MockAuditRepo is a mock implementation of port.AuditRepository.
type MockAuditRepo struct {
	mock.Mock
}

func (m *MockAuditRepo) Append(ctx context.Context, entry *domain.AuditLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditRepo) Query(ctx context.Context, filter domain.AuditFilter, cursor *domain.AuditCursor, limit int) ([]domain.AuditLogEntry, error) {
	args := m.Called(ctx, filter, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AuditLogEntry), args.Error(1)
}

func (m *MockAuditRepo) ListChain(ctx context.Context, tenantID uuid.UUID, afterSeq int64, limit int) ([]domain.AuditLogEntry, error) {
	args := m.Called(ctx, tenantID, afterSeq, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AuditLogEntry), args.Error(1)
}
