package app

import (
	"errors"
	"net/http"

	"github.com/ticketsystem/booking-engine/api"
	"github.com/ticketsystem/booking-engine/internal/domain"
)

func (app *Application) GetScheduleAvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	scheduleID, err := app.readUUIDParam(r, "scheduleID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	availability, err := app.bookingService.GetScheduleAvailability(r.Context(), scheduleID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	resp := toApiScheduleAvailability(availability)

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func toApiScheduleAvailability(a *domain.ScheduleAvailability) api.ScheduleAvailabilityResponse {
	reservedSeats := a.ReservedSeats
	if reservedSeats == nil {
		reservedSeats = []string{}
	}

	return api.ScheduleAvailabilityResponse{
		ScheduleId:     a.ScheduleID.String(),
		RouteId:        a.RouteID.String(),
		DepartureTime:  a.DepartureTime,
		ArrivalTime:    a.ArrivalTime,
		TotalSeats:     a.TotalSeats,
		AvailableSeats: a.AvailableSeats,
		BasePrice:      a.BasePrice,
		IsActive:       a.IsActive,
		ReservedSeats:  reservedSeats,
	}
}
