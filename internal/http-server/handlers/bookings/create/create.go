package create

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
	"github.com/go-chi/render"
)

type BookingCreator interface {
	CreateBooking(ctx context.Context, b models.Booking) (models.Booking, error)
}

type Request struct {
	api.BookingRequest
}

type Response struct {
	response.Response
	Booking *api.BookingResponse `json:"booking,omitempty"`
}

func New(log *slog.Logger, creator BookingCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.create.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		log.Debug("Request body decoded", slog.Any("request", req))

		if req.Date == "" || req.Room == "" {
			log.Error("date or room is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "date and room are required"))
			return
		}

		booking, err := creator.CreateBooking(r.Context(), req.Booking())

		if errors.Is(err, response.ErrValidation) {
			log.Warn("booking rejected", sl.Err(err))
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

		if errors.Is(err, response.ErrAlreadyExists) {
			log.Warn("booking id already used", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.CONFLICT), "booking id already exists"))
			return
		}

		if errors.Is(err, response.ErrLocked) {
			log.Warn("resource is locked")
			w.WriteHeader(http.StatusLocked)
			render.JSON(w, r, response.Error(string(response.LOCKED), "resource is locked"))
			return
		}

		if err != nil {
			log.Error("Failed to create booking", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to create booking"))
			return
		}

		log.Info("Booking created", slog.String("id", booking.ID))

		w.WriteHeader(http.StatusCreated)
		responseOK(w, r, booking)
	}
}

func responseOK(w http.ResponseWriter, r *http.Request, booking models.Booking) {
	resp := api.NewBookingResponse(booking)
	render.JSON(w, r, Response{
		Booking: &resp,
	})
}
