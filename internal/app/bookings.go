package app

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/ticketsystem/booking-engine/api"
	"github.com/ticketsystem/booking-engine/internal/booking"
	"github.com/ticketsystem/booking-engine/internal/domain"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

func (app *Application) CreateBookingHandler(w http.ResponseWriter, r *http.Request) {
	scheduleID, err := app.readUUIDParam(r, "scheduleID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var req api.CreateBookingRequest

	err = app.readJSON(w, r, &req)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(req)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	userID, err := uuid.Parse(req.UserId)
	if err != nil {
		app.badRequestResponse(w, r, errors.New("userId must be a valid UUID"))
		return
	}

	seats := make([]booking.SeatSelection, len(req.Seats))
	for i, seat := range req.Seats {
		seats[i] = booking.SeatSelection{
			SeatNumber: seat.SeatNumber,
			SeatType:   seat.SeatType,
		}
	}

	created, err := app.bookingService.CreateBooking(r.Context(), booking.CreateBookingParams{
		UserID:       userID,
		ScheduleID:   scheduleID,
		Seats:        seats,
		ContactPhone: req.ContactPhone,
		ContactEmail: req.ContactEmail,
	})
	if err != nil {
		var seatErr *domain.SeatUnavailableError

		switch {
		case errors.As(err, &seatErr):
			app.seatUnavailableResponse(w, r, seatErr)
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		case errors.Is(err, domain.ErrScheduleInactive):
			app.conflictResponse(w, r, "The schedule is not open for booking")
		case errors.Is(err, domain.ErrInsufficientCapacity):
			app.conflictResponse(w, r, "The schedule does not have enough available seats")
		case errors.Is(err, domain.ErrInvalidState):
			app.badRequestResponse(w, r, err)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	resp := api.BookingResponse{Booking: *toApiBooking(created)}

	err = app.writeJSON(w, http.StatusCreated, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) ConfirmBookingHandler(w http.ResponseWriter, r *http.Request) {
	bookingID, err := app.readUUIDParam(r, "bookingID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	confirmed, err := app.bookingService.ConfirmBooking(r.Context(), bookingID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		case errors.Is(err, domain.ErrBookingExpired):
			app.conflictResponse(w, r, "The booking hold has expired")
		case errors.Is(err, domain.ErrInvalidState):
			app.conflictResponse(w, r, "The booking is not awaiting confirmation")
		case errors.Is(err, domain.ErrPaymentFailed):
			app.paymentRequiredResponse(w, r, err)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	resp := api.BookingResponse{Booking: *toApiBooking(confirmed)}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) CancelBookingHandler(w http.ResponseWriter, r *http.Request) {
	bookingID, err := app.readUUIDParam(r, "bookingID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	cancelled, err := app.bookingService.CancelBooking(r.Context(), bookingID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		case errors.Is(err, domain.ErrInvalidState):
			app.conflictResponse(w, r, "The booking can no longer be cancelled")
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	resp := api.BookingResponse{Booking: *toApiBooking(cancelled)}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetBookingHandler(w http.ResponseWriter, r *http.Request) {
	bookingID, err := app.readUUIDParam(r, "bookingID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	found, err := app.bookingService.GetBooking(r.Context(), bookingID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	resp := api.BookingResponse{Booking: *toApiBooking(found)}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetUserBookingsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := app.readUUIDParam(r, "userID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	pagination, err := app.readPagination(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	summaries, metadata, err := app.bookingService.GetUserBookings(r.Context(), userID, pagination)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	resp := api.UserBookingsResponse{
		Bookings: toApiBookingSummaries(summaries),
		Metadata: toApiMetadata(metadata),
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func toApiBooking(b *domain.Booking) *api.Booking {
	tickets := make([]api.Ticket, len(b.Tickets))

	for i, t := range b.Tickets {
		tickets[i] = api.Ticket{
			Id:            t.ID.String(),
			SeatNumber:    t.SeatNumber,
			SeatType:      t.SeatType,
			Price:         t.Price,
			Status:        string(t.Status),
			ReservedUntil: t.ReservedUntil,
		}
	}

	return &api.Booking{
		Id:               b.ID.String(),
		BookingReference: b.BookingReference,
		UserId:           b.UserID.String(),
		ScheduleId:       b.ScheduleID.String(),
		Status:           string(b.Status),
		TotalAmount:      b.TotalAmount,
		Tickets:          tickets,
		ContactPhone:     b.ContactPhone,
		ContactEmail:     b.ContactEmail,
		ExpiresAt:        b.ExpiresAt,
		CreatedAt:        b.CreatedAt,
	}
}

func toApiBookingSummaries(summaries []domain.BookingSummary) []api.BookingSummary {
	apiSummaries := make([]api.BookingSummary, len(summaries))

	for i, v := range summaries {
		apiSummaries[i] = api.BookingSummary{
			Id:               v.ID.String(),
			BookingReference: v.BookingReference,
			ScheduleId:       v.ScheduleID.String(),
			DepartureTime:    v.DepartureTime,
			SeatCount:        v.SeatCount,
			TotalAmount:      v.TotalAmount,
			Status:           string(v.Status),
			CreatedAt:        v.CreatedAt,
		}
	}

	return apiSummaries
}

func toApiMetadata(metadata *domain.Metadata) api.Metadata {
	if metadata == nil {
		return api.Metadata{}
	}

	return api.Metadata{
		CurrentPage:  metadata.CurrentPage,
		FirstPage:    metadata.FirstPage,
		LastPage:     metadata.LastPage,
		PageSize:     metadata.PageSize,
		TotalRecords: metadata.TotalRecords,
	}
}
