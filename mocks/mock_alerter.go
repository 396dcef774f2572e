package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"firmdocs/internal/port"
)

// MockAlerter is a mock implementation of port.Alerter.
type MockAlerter struct {
	mock.Mock
}

func (m *MockAlerter) Send(ctx context.Context, alert port.Alert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}
