package mocks

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/ticketsystem/booking-engine/internal/domain"
)

type MockPaymentProvider struct {
	mock.Mock
	domain.PaymentProvider
}

func (m *MockPaymentProvider) Charge(
	ctx context.Context,
	booking *domain.Booking,
	amount decimal.Decimal,
	currency string) (*domain.PaymentResult, error) {

	args := m.Called(ctx, booking, amount, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentResult), args.Error(1)
}
