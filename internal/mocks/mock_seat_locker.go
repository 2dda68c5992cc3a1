package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockSeatLocker struct {
	mock.Mock
}

func (m *MockSeatLocker) Acquire(
	ctx context.Context,
	scheduleID uuid.UUID,
	seats []string,
	holder string,
	ttl time.Duration) error {

	args := m.Called(ctx, scheduleID, seats, holder, ttl)
	return args.Error(0)
}

func (m *MockSeatLocker) Release(ctx context.Context, scheduleID uuid.UUID, seats []string) {
	m.Called(ctx, scheduleID, seats)
}

func (m *MockSeatLocker) HeldSeats(ctx context.Context, scheduleID uuid.UUID) ([]string, error) {
	args := m.Called(ctx, scheduleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
