package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"firmdocs/internal/domain"
)

// MockRoleResolver is a mock implementation of port.RoleResolver.
type MockRoleResolver struct {
	mock.Mock
}

func (m *MockRoleResolver) Resolve(ctx context.Context, tenantID, actorID uuid.UUID, role string) (domain.PermissionSet, error) {
	args := m.Called(ctx, tenantID, actorID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.PermissionSet), args.Error(1)
}
