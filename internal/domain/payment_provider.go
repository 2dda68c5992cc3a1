package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// PaymentResult is what the payment gateway reports for a settled charge.
type PaymentResult struct {
	TransactionID string
}

// PaymentProvider is the reconciliation boundary with the payment gateway.
// The orchestrator treats any error, including a context deadline, as a
// payment failure and cancels the booking. Implementations must respect ctx;
// seats stay RESERVED, never locked, while a charge is in flight.
type PaymentProvider interface {
	Charge(ctx context.Context, booking *Booking, amount decimal.Decimal, currency string) (*PaymentResult, error)
}
