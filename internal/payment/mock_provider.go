package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/ticketsystem/booking-engine/internal/domain"
)

// MockPaymentProvider approves every charge. It backs dev environments where
// no Stripe key is configured.
type MockPaymentProvider struct {
}

func NewMockPaymentProvider() *MockPaymentProvider {
	return &MockPaymentProvider{}
}

func (m *MockPaymentProvider) Charge(
	ctx context.Context,
	booking *domain.Booking,
	amount decimal.Decimal,
	currency string) (*domain.PaymentResult, error) {

	return &domain.PaymentResult{
		TransactionID: fmt.Sprintf("mock_%s", uuid.NewString()),
	}, nil
}
