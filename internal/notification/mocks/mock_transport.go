package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/shaharia-lab/knockknock/internal/notification"
)

var _ notification.Transport = (*MockTransport)(nil)

// MockTransport is a mock implementation of notification.Transport.
type MockTransport struct {
	mock.Mock
}

//nolint:revive
func (m *MockTransport) Name() string {
	args := m.Called()
	return args.String(0)
}

//nolint:revive
func (m *MockTransport) Send(ctx context.Context, to, subject string, lines []string) error {
	args := m.Called(ctx, to, subject, lines)
	return args.Error(0)
}
