package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TicketStatus string

const (
	TicketStatusReserved  TicketStatus = "RESERVED"
	TicketStatusConfirmed TicketStatus = "CONFIRMED"
	TicketStatusExpired   TicketStatus = "EXPIRED"
	TicketStatusCancelled TicketStatus = "CANCELLED"
)

// ticketTransitions is the authoritative transition table for tickets. A seat
// without a ticket row is implicitly available; the first transition is always
// into RESERVED at insert time. EXPIRED, CANCELLED and settled CONFIRMED are
// terminal.
var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusReserved:  {TicketStatusConfirmed, TicketStatusExpired, TicketStatusCancelled},
	TicketStatusConfirmed: {TicketStatusCancelled},
}

func (s TicketStatus) CanTransitionTo(next TicketStatus) bool {
	for _, allowed := range ticketTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusExpired || s == TicketStatusCancelled
}

type Ticket struct {
	ID            uuid.UUID
	ScheduleID    uuid.UUID
	BookingID     uuid.UUID
	SeatNumber    string
	SeatType      string
	Price         decimal.Decimal
	Status        TicketStatus
	ReservedUntil *time.Time
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}

type TicketRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Ticket, error)
	GetByBookingID(ctx context.Context, bookingID uuid.UUID) ([]Ticket, error)

	// ExpireStale transitions RESERVED tickets whose reservedUntil deadline
	// has passed and whose owning booking is no longer PENDING. These only
	// appear when a cancel or expire crashed between statements; the sweeper
	// calls this to mop them up. Returns the number of tickets expired.
	ExpireStale(ctx context.Context, asOf time.Time, limit int) (int, error)
}
