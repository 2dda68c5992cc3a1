package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Schedule struct {
	ID             uuid.UUID
	RouteID        uuid.UUID
	DepartureTime  time.Time
	ArrivalTime    time.Time
	TotalSeats     int
	AvailableSeats int
	BasePrice      decimal.Decimal
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

// ScheduleAvailability is the read model behind the availability endpoint.
// ReservedSeats holds the seat numbers of every non-terminal ticket, so a
// client can render the seat picker without a second round trip.
type ScheduleAvailability struct {
	ScheduleID     uuid.UUID
	RouteID        uuid.UUID
	DepartureTime  time.Time
	ArrivalTime    time.Time
	TotalSeats     int
	AvailableSeats int
	BasePrice      decimal.Decimal
	IsActive       bool
	ReservedSeats  []string
}

// ScheduleRepository is the only component allowed to touch
// schedules.available_seats. Decrements and increments happen inside the
// booking repository's transactions via this repository's tx helpers; there
// is deliberately no setter-style update method here.
type ScheduleRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error)
	GetAvailability(ctx context.Context, id uuid.UUID) (*ScheduleAvailability, error)
}
