package mocks

import (
	"context"

	"github.com/dukex/autoflow/pkg/dispatch"
	"github.com/stretchr/testify/mock"
)

// MockDispatcher is a mock implementation of dispatch.Dispatcher interface.
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) SendEmail(ctx context.Context, to, subject, body string) (*dispatch.Result, error) {
	args := m.Called(ctx, to, subject, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*dispatch.Result), args.Error(1)
}

func (m *MockDispatcher) SendSMS(ctx context.Context, to, message string) (*dispatch.Result, error) {
	args := m.Called(ctx, to, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*dispatch.Result), args.Error(1)
}

func (m *MockDispatcher) CreateTask(ctx context.Context, task dispatch.Task) (*dispatch.Result, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*dispatch.Result), args.Error(1)
}

func (m *MockDispatcher) SendNotification(
	ctx context.Context,
	notification dispatch.Notification,
) (*dispatch.Result, error) {
	args := m.Called(ctx, notification)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*dispatch.Result), args.Error(1)
}
