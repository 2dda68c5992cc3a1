package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/ticketsystem/booking-engine/internal/domain"
)

type MockScheduleRepo struct {
	mock.Mock
	domain.ScheduleRepository
}

func (m *MockScheduleRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Schedule), args.Error(1)
}

func (m *MockScheduleRepo) GetAvailability(ctx context.Context, id uuid.UUID) (*domain.ScheduleAvailability, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ScheduleAvailability), args.Error(1)
}
