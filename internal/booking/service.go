package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/ticketsystem/booking-engine/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Config carries the hold policy. BookingHold is the authoritative deadline
// for the whole booking; TicketHold bounds the Redis seat locks and the
// advisory reservedUntil on each ticket, and must not exceed BookingHold.
type Config struct {
	BookingHold    time.Duration
	TicketHold     time.Duration
	PaymentTimeout time.Duration
	Currency       string
}

func (c Config) Validate() error {
	if c.TicketHold <= 0 || c.BookingHold <= 0 {
		return errors.New("booking and ticket hold durations must be positive")
	}

	if c.BookingHold < c.TicketHold {
		return errors.New("booking hold duration must cover the ticket hold duration")
	}

	if c.PaymentTimeout <= 0 {
		return errors.New("payment timeout must be positive")
	}

	return nil
}

type SeatSelection struct {
	SeatNumber string
	SeatType   string
}

type CreateBookingParams struct {
	UserID       uuid.UUID
	ScheduleID   uuid.UUID
	Seats        []SeatSelection
	ContactPhone *string
	ContactEmail *string
}

// Service is the booking orchestrator. All status transitions run through the
// repositories' guarded updates; the service sequences them, talks to the
// payment gateway, and emits lifecycle events.
type Service struct {
	bookings  domain.BookingRepository
	schedules domain.ScheduleRepository
	tickets   domain.TicketRepository
	payments  domain.PaymentRepository
	provider  domain.PaymentProvider
	notifier  domain.Notifier
	locks     SeatLocker
	logger    *slog.Logger
	cfg       Config

	now func() time.Time

	bookingsCreated   metric.Int64Counter
	bookingsConfirmed metric.Int64Counter
	bookingsExpired   metric.Int64Counter
}

func NewService(
	bookings domain.BookingRepository,
	schedules domain.ScheduleRepository,
	tickets domain.TicketRepository,
	payments domain.PaymentRepository,
	provider domain.PaymentProvider,
	notifier domain.Notifier,
	locks SeatLocker,
	logger *slog.Logger,
	cfg Config) (*Service, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	meter := otel.Meter("github.com/ticketsystem/booking-engine/internal/booking")

	bookingsCreated, err := meter.Int64Counter("bookings.created")
	if err != nil {
		return nil, err
	}

	bookingsConfirmed, err := meter.Int64Counter("bookings.confirmed")
	if err != nil {
		return nil, err
	}

	bookingsExpired, err := meter.Int64Counter("bookings.expired")
	if err != nil {
		return nil, err
	}

	return &Service{
		bookings:          bookings,
		schedules:         schedules,
		tickets:           tickets,
		payments:          payments,
		provider:          provider,
		notifier:          notifier,
		locks:             locks,
		logger:            logger,
		cfg:               cfg,
		now:               func() time.Time { return time.Now().UTC() },
		bookingsCreated:   bookingsCreated,
		bookingsConfirmed: bookingsConfirmed,
		bookingsExpired:   bookingsExpired,
	}, nil
}

// CreateBooking reserves every requested seat or none of them. The Redis
// locks fence off concurrent attempts up front; the database transaction
// inside bookings.Create is the authority, and any failure there rolls the
// whole attempt back, including the locks.
func (s *Service) CreateBooking(ctx context.Context, params CreateBookingParams) (*domain.Booking, error) {
	if len(params.Seats) == 0 {
		return nil, fmt.Errorf("%w: a booking needs at least one seat", domain.ErrInvalidState)
	}

	seatNumbers := make([]string, len(params.Seats))
	seen := make(map[string]bool, len(params.Seats))

	for i, seat := range params.Seats {
		if seen[seat.SeatNumber] {
			return nil, fmt.Errorf("%w: seat %s requested twice", domain.ErrInvalidState, seat.SeatNumber)
		}

		seen[seat.SeatNumber] = true
		seatNumbers[i] = seat.SeatNumber
	}

	schedule, err := s.schedules.GetByID(ctx, params.ScheduleID)
	if err != nil {
		return nil, err
	}

	if !schedule.IsActive {
		return nil, domain.ErrScheduleInactive
	}

	reference, err := newBookingReference()
	if err != nil {
		return nil, err
	}

	err = s.locks.Acquire(ctx, params.ScheduleID, seatNumbers, reference, s.cfg.TicketHold)
	if err != nil {
		return nil, err
	}

	now := s.now()
	reservedUntil := now.Add(s.cfg.TicketHold)
	bookingID := uuid.New()

	tickets := make([]domain.Ticket, len(params.Seats))
	totalAmount := decimal.Zero

	for i, seat := range params.Seats {
		tickets[i] = domain.Ticket{
			ID:            uuid.New(),
			ScheduleID:    params.ScheduleID,
			BookingID:     bookingID,
			SeatNumber:    seat.SeatNumber,
			SeatType:      seat.SeatType,
			Price:         schedule.BasePrice,
			Status:        domain.TicketStatusReserved,
			ReservedUntil: &reservedUntil,
		}

		totalAmount = totalAmount.Add(schedule.BasePrice)
	}

	booking := &domain.Booking{
		ID:               bookingID,
		BookingReference: reference,
		UserID:           params.UserID,
		ScheduleID:       params.ScheduleID,
		Tickets:          tickets,
		TotalAmount:      totalAmount,
		Status:           domain.BookingStatusPending,
		ContactPhone:     params.ContactPhone,
		ContactEmail:     params.ContactEmail,
		ExpiresAt:        now.Add(s.cfg.BookingHold),
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		s.locks.Release(ctx, params.ScheduleID, seatNumbers)
		return nil, err
	}

	s.bookingsCreated.Add(ctx, 1)

	return booking, nil
}

// ConfirmBooking settles a PENDING booking with the payment gateway. The
// charge runs under its own deadline and no locks are held while it is in
// flight; the seats stay RESERVED in the database. A declined or timed-out
// charge cancels the booking and releases its seats.
func (s *Service) ConfirmBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if booking.Status != domain.BookingStatusPending {
		return nil, domain.ErrInvalidState
	}

	if s.now().After(booking.ExpiresAt) {
		return nil, domain.ErrBookingExpired
	}

	payment := &domain.Payment{
		ID:        uuid.New(),
		BookingID: booking.ID,
		Amount:    booking.TotalAmount,
		Currency:  s.cfg.Currency,
		Status:    domain.PaymentStatusPending,
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	chargeCtx, cancel := context.WithTimeout(ctx, s.cfg.PaymentTimeout)
	result, chargeErr := s.provider.Charge(chargeCtx, booking, booking.TotalAmount, s.cfg.Currency)
	cancel()

	if chargeErr != nil {
		return nil, s.failPayment(ctx, booking, payment, chargeErr)
	}

	confirmed, err := s.bookings.Confirm(ctx, booking.ID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			// The sweeper expired the booking while the charge was in
			// flight. The money moved, so flag the payment for refund
			// instead of pretending the charge failed.
			s.logger.Warn("booking left PENDING during charge, marking payment refunded",
				"booking_id", booking.ID, "transaction_id", result.TransactionID)

			if updateErr := s.payments.UpdateStatus(
				ctx, payment.ID, domain.PaymentStatusRefunded, result.TransactionID, "booking expired during charge",
			); updateErr != nil {
				s.logger.Error("failed to mark payment refunded", "payment_id", payment.ID, "error", updateErr)
			}
		}

		return nil, err
	}

	if err := s.payments.UpdateStatus(ctx, payment.ID, domain.PaymentStatusCompleted, result.TransactionID, ""); err != nil {
		s.logger.Error("failed to mark payment completed", "payment_id", payment.ID, "error", err)
	}

	s.bookingsConfirmed.Add(ctx, 1)
	s.publish(ctx, domain.EventBookingConfirmed, confirmed)

	return confirmed, nil
}

func (s *Service) failPayment(ctx context.Context, booking *domain.Booking, payment *domain.Payment, chargeErr error) error {
	s.logger.Warn("charge failed, cancelling booking",
		"booking_id", booking.ID, "error", chargeErr)

	if err := s.payments.UpdateStatus(ctx, payment.ID, domain.PaymentStatusFailed, "", chargeErr.Error()); err != nil {
		s.logger.Error("failed to mark payment failed", "payment_id", payment.ID, "error", err)
	}

	cancelled, err := s.bookings.Cancel(ctx, booking.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidState) {
			s.logger.Error("failed to cancel booking after charge failure", "booking_id", booking.ID, "error", err)
		}
	} else {
		s.releaseLocks(ctx, cancelled)
		s.publish(ctx, domain.EventBookingCancelled, cancelled)
	}

	return fmt.Errorf("%w: %v", domain.ErrPaymentFailed, chargeErr)
}

// CancelBooking is the explicit user-initiated cancellation, valid from
// PENDING or, post-refund, from CONFIRMED.
func (s *Service) CancelBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	cancelled, err := s.bookings.Cancel(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	payment, err := s.payments.GetByBookingID(ctx, bookingID)
	if err == nil && payment.Status == domain.PaymentStatusCompleted {
		if err := s.payments.UpdateStatus(ctx, payment.ID, domain.PaymentStatusRefunded, "", ""); err != nil {
			s.logger.Error("failed to mark payment refunded", "payment_id", payment.ID, "error", err)
		}
	} else if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
		s.logger.Error("failed to load payment during cancellation", "booking_id", bookingID, "error", err)
	}

	s.releaseLocks(ctx, cancelled)
	s.publish(ctx, domain.EventBookingCancelled, cancelled)

	return cancelled, nil
}

// ExpireBooking is the sweeper's entry point. It reports false when the
// guarded transition did not fire, which is the expected outcome when a user
// confirmed or cancelled the booking moments earlier.
func (s *Service) ExpireBooking(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	expired, err := s.bookings.Expire(ctx, bookingID, s.now())
	if err != nil || !expired {
		return false, err
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		s.logger.Error("failed to load booking after expiry", "booking_id", bookingID, "error", err)
		return true, nil
	}

	s.bookingsExpired.Add(ctx, 1)
	s.releaseLocks(ctx, booking)
	s.publish(ctx, domain.EventBookingExpired, booking)

	return true, nil
}

func (s *Service) GetBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	return s.bookings.GetByID(ctx, bookingID)
}

func (s *Service) GetUserBookings(
	ctx context.Context,
	userID uuid.UUID,
	pagination domain.Pagination) ([]domain.BookingSummary, *domain.Metadata, error) {

	return s.bookings.GetSummariesByUserID(ctx, userID, pagination)
}

// GetScheduleAvailability merges the database view of reserved seats with the
// seats currently fenced by in-flight booking attempts, so the caller sees
// every seat it cannot have right now.
func (s *Service) GetScheduleAvailability(ctx context.Context, scheduleID uuid.UUID) (*domain.ScheduleAvailability, error) {
	availability, err := s.schedules.GetAvailability(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	held, err := s.locks.HeldSeats(ctx, scheduleID)
	if err != nil {
		s.logger.Error("failed to list held seats", "schedule_id", scheduleID, "error", err)
		return availability, nil
	}

	known := make(map[string]bool, len(availability.ReservedSeats))
	for _, seat := range availability.ReservedSeats {
		known[seat] = true
	}

	for _, seat := range held {
		if !known[seat] {
			availability.ReservedSeats = append(availability.ReservedSeats, seat)
		}
	}

	return availability, nil
}

func (s *Service) releaseLocks(ctx context.Context, booking *domain.Booking) {
	seats := make([]string, len(booking.Tickets))
	for i, t := range booking.Tickets {
		seats[i] = t.SeatNumber
	}

	s.locks.Release(ctx, booking.ScheduleID, seats)
}

func (s *Service) publish(ctx context.Context, eventType string, booking *domain.Booking) {
	event := domain.NewBookingEvent(eventType, booking)

	if err := s.notifier.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish booking event",
			"event", eventType, "booking_id", booking.ID, "error", err)
	}
}
