package domain

import (
	"context"
	"time"
)

const (
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
	EventBookingExpired   = "booking.expired"
)

// BookingEvent is the payload handed to the notification dispatcher. Delivery
// and formatting are the dispatcher's problem; this core only emits.
type BookingEvent struct {
	Type             string    `json:"type"`
	BookingID        string    `json:"booking_id"`
	BookingReference string    `json:"booking_reference"`
	UserID           string    `json:"user_id"`
	ScheduleID       string    `json:"schedule_id"`
	SeatNumbers      []string  `json:"seat_numbers"`
	TotalAmount      string    `json:"total_amount"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// Notifier publishes booking lifecycle events. Implementations must not block
// the booking flow on broker trouble; a failed publish is logged and dropped.
type Notifier interface {
	Publish(ctx context.Context, event BookingEvent) error
}

func NewBookingEvent(eventType string, booking *Booking) BookingEvent {
	seats := make([]string, len(booking.Tickets))
	for i, t := range booking.Tickets {
		seats[i] = t.SeatNumber
	}

	return BookingEvent{
		Type:             eventType,
		BookingID:        booking.ID.String(),
		BookingReference: booking.BookingReference,
		UserID:           booking.UserID.String(),
		ScheduleID:       booking.ScheduleID.String(),
		SeatNumbers:      seats,
		TotalAmount:      booking.TotalAmount.String(),
		OccurredAt:       time.Now().UTC(),
	}
}
