package reschedule

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"booking-service/api"
	"booking-service/internal/models"
	"booking-service/pkg/response"
	"booking-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type BookingRescheduler interface {
	RescheduleBooking(ctx context.Context, id string, start, end int) (models.Booking, error)
}

type Request struct {
	api.RescheduleRequest
}

type Response struct {
	response.Response
	Booking *api.BookingResponse `json:"booking,omitempty"`
}

func New(log *slog.Logger, rescheduler BookingRescheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.reschedule.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")
		if id == "" {
			log.Error("id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "id is required"))
			return
		}

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		booking, err := rescheduler.RescheduleBooking(r.Context(), id, req.Start, req.End)

		if errors.Is(err, response.ErrNotFound) {
			log.Warn("booking not found", slog.String("id", id))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))
			return
		}

		if errors.Is(err, response.ErrValidation) {
			log.Warn("reschedule rejected", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.VALIDATION_FAILED), err.Error()))
			return
		}

		if errors.Is(err, response.ErrConstraintViolation) {
			log.Warn("slot is already taken", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.SLOT_TAKEN), "slot is already taken"))
			return
		}

		if errors.Is(err, response.ErrLocked) {
			log.Warn("resource is locked")
			w.WriteHeader(http.StatusLocked)
			render.JSON(w, r, response.Error(string(response.LOCKED), "resource is locked"))
			return
		}

		if err != nil {
			log.Error("Failed to reschedule booking", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to reschedule booking"))
			return
		}

		log.Info("Booking rescheduled", slog.String("id", id))

		resp := api.NewBookingResponse(booking)
		render.JSON(w, r, Response{Booking: &resp})
	}
}
