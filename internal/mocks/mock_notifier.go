package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/ticketsystem/booking-engine/internal/domain"
)

type MockNotifier struct {
	mock.Mock
	domain.Notifier
}

func (m *MockNotifier) Publish(ctx context.Context, event domain.BookingEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
