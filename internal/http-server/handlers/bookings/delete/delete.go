package delete

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"booking-service/pkg/response"
	"booking-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type BookingDeleter interface {
	DeleteBooking(ctx context.Context, id string) error
}

func New(log *slog.Logger, deleter BookingDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.delete.New"

		id := chi.URLParam(r, "id")

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("id", id),
		)

		if id == "" {
			log.Error("id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "id is required"))
			return
		}

		err := deleter.DeleteBooking(r.Context(), id)

		switch {
		case err == nil:
			log.Info("Booking deleted")
			w.WriteHeader(http.StatusNoContent)

		case errors.Is(err, response.ErrNotFound):
			// already gone, possibly deleted by another client
			log.Warn("booking not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "booking not found"))

		case errors.Is(err, response.ErrLocked):
			log.Warn("resource is locked")
			w.WriteHeader(http.StatusLocked)
			render.JSON(w, r, response.Error(string(response.LOCKED), "resource is locked"))

		case errors.Is(err, response.ErrTransport):
			log.Error("Storage unavailable", sl.Err(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "storage unavailable, retry later"))

		default:
			log.Error("Failed to delete booking", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to delete booking"))
		}
	}
}
