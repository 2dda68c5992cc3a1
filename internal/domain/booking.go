package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusExpired   BookingStatus = "EXPIRED"
)

// bookingTransitions mirrors the ticket table one level up. CONFIRMED can
// still move to CANCELLED (refund); EXPIRED and CANCELLED are terminal.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusExpired, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCancelled},
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusExpired || s == BookingStatusCancelled
}

// Booking owns its tickets: cancellation and expiry cascade to every ticket
// referenced by the booking. ExpiresAt is the authoritative hold deadline;
// per-ticket reservedUntil is advisory.
type Booking struct {
	ID               uuid.UUID
	BookingReference string
	UserID           uuid.UUID
	ScheduleID       uuid.UUID
	Tickets          []Ticket
	TotalAmount      decimal.Decimal
	Status           BookingStatus
	ContactPhone     *string
	ContactEmail     *string
	ExpiresAt        time.Time
	CreatedAt        time.Time
	UpdatedAt        *time.Time
}

type BookingSummary struct {
	ID               uuid.UUID
	BookingReference string
	ScheduleID       uuid.UUID
	DepartureTime    time.Time
	SeatCount        int
	TotalAmount      decimal.Decimal
	Status           BookingStatus
	CreatedAt        time.Time
}

// BookingRepository implements every status transition as a guarded,
// transactional update: the row only moves if it is still in the expected
// source state, and the seat counter and ticket rows move in the same
// transaction. Callers never mutate status or available_seats directly.
type BookingRepository interface {
	// Create inserts the booking and its RESERVED tickets and decrements the
	// schedule's available seats, all in one transaction. It fails with a
	// SeatUnavailableError when any requested seat already has a non-terminal
	// ticket, and with ErrInsufficientCapacity when the schedule cannot cover
	// the seat count. On failure nothing is persisted.
	Create(ctx context.Context, booking *Booking) error

	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetSummariesByUserID(ctx context.Context, userID uuid.UUID, pagination Pagination) ([]BookingSummary, *Metadata, error)

	// Confirm moves a PENDING booking and its RESERVED tickets to CONFIRMED.
	// Seats stay deducted. Returns ErrInvalidState if the booking is not
	// PENDING anymore.
	Confirm(ctx context.Context, id uuid.UUID) (*Booking, error)

	// Cancel moves the booking to CANCELLED from any of the allowed source
	// states, cancels its non-terminal tickets and releases their seats back
	// to the schedule. Returns ErrInvalidState when the booking is already
	// terminal.
	Cancel(ctx context.Context, id uuid.UUID) (*Booking, error)

	// Expire is the sweeper's guarded transition: it only fires when the
	// booking is still PENDING and its deadline is past asOf. It reports
	// false, not an error, when the guard does not hold, so racing with a
	// user-initiated confirm or cancel is harmless.
	Expire(ctx context.Context, id uuid.UUID, asOf time.Time) (bool, error)

	// FindExpired returns IDs of PENDING bookings whose expiresAt is at or
	// before asOf, oldest first, capped at limit.
	FindExpired(ctx context.Context, asOf time.Time, limit int) ([]uuid.UUID, error)
}
