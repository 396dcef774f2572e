package mocks

import (
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"firmdocs/internal/service"
)

// MockTokenVerifier is a mock implementation of service.TokenVerifier.
type MockTokenVerifier struct {
	mock.Mock
}

func (m *MockTokenVerifier) ValidateToken(tokenString string) (*service.Claims, error) {
	args := m.Called(tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Claims), args.Error(1)
}

func (m *MockTokenVerifier) IssueToken(tenantID, userID uuid.UUID, role string, ttl time.Duration) (string, error) {
	args := m.Called(tenantID, userID, role, ttl)
	return args.String(0), args.Error(1)
}
