package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/ticketsystem/booking-engine/internal/domain"
)

// StripePaymentProvider settles bookings through Stripe PaymentIntents using
// the off-session flow: the traveller's payment method was collected by the
// gateway up front and referenced here by booking metadata.
type StripePaymentProvider struct {
	paymentMethod string
}

func NewStripePaymentProvider(paymentMethod string) *StripePaymentProvider {
	return &StripePaymentProvider{
		paymentMethod: paymentMethod,
	}
}

func (s *StripePaymentProvider) Charge(
	ctx context.Context,
	booking *domain.Booking,
	amount decimal.Decimal,
	currency string) (*domain.PaymentResult, error) {

	amountCents := amount.Mul(decimal.NewFromInt(100)).IntPart()

	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Amount:        stripe.Int64(amountCents),
		Currency:      stripe.String(strings.ToLower(currency)),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
		PaymentMethod: stripe.String(s.paymentMethod),
		Description:   stripe.String(fmt.Sprintf("Booking %s", booking.BookingReference)),
		Metadata: map[string]string{
			"booking_id":        booking.ID.String(),
			"booking_reference": booking.BookingReference,
			"schedule_id":       booking.ScheduleID.String(),
			"user_id":           booking.UserID.String(),
		},
	}

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, err
	}

	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, fmt.Errorf("payment intent %s finished in status %s", intent.ID, intent.Status)
	}

	return &domain.PaymentResult{
		TransactionID: intent.ID,
	}, nil
}
