package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRecordNotFound       = errors.New("record not found")
	ErrInvalidState         = errors.New("entity is not in the expected state for this operation")
	ErrInsufficientCapacity = errors.New("schedule does not have enough available seats")
	ErrScheduleInactive     = errors.New("schedule is not open for booking")
	ErrBookingExpired       = errors.New("booking hold has expired")
	ErrPaymentFailed        = errors.New("payment was declined or timed out")

	// ErrCapacityExceeded marks an internal invariant breach: available_seats
	// would leave the [0, total_seats] range. It must never fire when locking
	// is correct; it is logged as a bug, not handled as a normal error.
	ErrCapacityExceeded = errors.New("seat counter would leave the valid range")
)

// SeatUnavailableError reports exactly which seats could not be reserved, so
// the caller can pick different ones. When it is returned, nothing from the
// attempt remains reserved.
type SeatUnavailableError struct {
	ScheduleID string
	Seats      []string
}

func (e *SeatUnavailableError) Error() string {
	return fmt.Sprintf("seat(s) %s are not available on schedule %s",
		strings.Join(e.Seats, ", "), e.ScheduleID)
}
