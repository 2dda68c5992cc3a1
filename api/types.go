// Package api holds the request and response types of the booking engine's
// HTTP surface. Timestamps serialize as RFC 3339 / ISO-8601.
package api

import (
	"time"

	"github.com/shopspring/decimal"
)

type SeatSelection struct {
	SeatNumber string `json:"seatNumber" validate:"required,seat_number"`
	SeatType   string `json:"seatType" validate:"omitempty,oneof=STANDARD WINDOW AISLE SLEEPER VIP"`
}

type CreateBookingRequest struct {
	UserId       string          `json:"userId" validate:"required,uuid"`
	Seats        []SeatSelection `json:"seats" validate:"required,min=1,max=10,unique=SeatNumber,dive"`
	ContactPhone *string         `json:"contactPhone,omitempty" validate:"omitempty,e164"`
	ContactEmail *string         `json:"contactEmail,omitempty" validate:"omitempty,email"`
}

type Ticket struct {
	Id            string          `json:"id"`
	SeatNumber    string          `json:"seatNumber"`
	SeatType      string          `json:"seatType,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Status        string          `json:"status"`
	ReservedUntil *time.Time      `json:"reservedUntil,omitempty"`
}

type Booking struct {
	Id               string          `json:"id"`
	BookingReference string          `json:"bookingReference"`
	UserId           string          `json:"userId"`
	ScheduleId       string          `json:"scheduleId"`
	Status           string          `json:"status"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	Tickets          []Ticket        `json:"tickets"`
	ContactPhone     *string         `json:"contactPhone,omitempty"`
	ContactEmail     *string         `json:"contactEmail,omitempty"`
	ExpiresAt        time.Time       `json:"expiresAt"`
	CreatedAt        time.Time       `json:"createdAt"`
}

type BookingResponse struct {
	Booking Booking `json:"booking"`
}

type BookingSummary struct {
	Id               string          `json:"id"`
	BookingReference string          `json:"bookingReference"`
	ScheduleId       string          `json:"scheduleId"`
	DepartureTime    time.Time       `json:"departureTime"`
	SeatCount        int             `json:"seatCount"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"createdAt"`
}

type UserBookingsResponse struct {
	Bookings []BookingSummary `json:"bookings"`
	Metadata Metadata         `json:"metadata"`
}

type ScheduleAvailabilityResponse struct {
	ScheduleId     string          `json:"scheduleId"`
	RouteId        string          `json:"routeId"`
	DepartureTime  time.Time       `json:"departureTime"`
	ArrivalTime    time.Time       `json:"arrivalTime"`
	TotalSeats     int             `json:"totalSeats"`
	AvailableSeats int             `json:"availableSeats"`
	BasePrice      decimal.Decimal `json:"basePrice"`
	IsActive       bool            `json:"isActive"`
	ReservedSeats  []string        `json:"reservedSeats"`
}

type Metadata struct {
	CurrentPage  int `json:"currentPage"`
	FirstPage    int `json:"firstPage"`
	LastPage     int `json:"lastPage"`
	PageSize     int `json:"pageSize"`
	TotalRecords int `json:"totalRecords"`
}

type SystemInfo struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

type HealthcheckResponse struct {
	Status     string     `json:"status"`
	SystemInfo SystemInfo `json:"systemInfo"`
}

type ErrorResponse struct {
	Message          string    `json:"message"`
	UnavailableSeats []string  `json:"unavailableSeats,omitempty"`
	RequestId        string    `json:"requestId,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

type ValidationError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

type ValidationErrorResponse struct {
	Message          string            `json:"message"`
	ValidationErrors []ValidationError `json:"validationErrors"`
	RequestId        string            `json:"requestId,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
}
