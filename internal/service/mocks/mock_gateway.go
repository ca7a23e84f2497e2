package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/fieldops/visitwatch/internal/notification"
)

// MockGateway is a mock implementation of service.NotificationGateway.
type MockGateway struct {
	mock.Mock
}

//nolint:revive
func (m *MockGateway) Send(ctx context.Context, d notification.Dispatch) notification.Result {
	args := m.Called(ctx, d)
	return args.Get(0).(notification.Result)
}
