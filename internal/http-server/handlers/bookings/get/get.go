package get

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

type BookingGetter interface {
	GetBooking(ctx context.Context, id string) (models.Booking, error)
	ListBookings(ctx context.Context, date string) ([]models.Booking, error)
}

type Response struct {
	response.Response
	Booking *api.BookingResponse `json:"booking,omitempty"`
}

// ListResponse always carries the bookings key, so an empty day renders as [].
type ListResponse struct {
	Bookings []api.BookingResponse `json:"bookings"`
}

// New serves both GET /bookings?date= and GET /bookings/{id}.
func New(log *slog.Logger, getter BookingGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.get.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")

		if id != "" {
			booking, err := getter.GetBooking(r.Context(), id)

			if errors.Is(err, response.ErrNotFound) {
				log.Warn("booking not found", slog.String("id", id))
				w.WriteHeader(http.StatusNotFound)
				render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))
				return
			}

			if err != nil {
				log.Error("Failed to get booking", sl.Err(err))
				w.WriteHeader(http.StatusInternalServerError)
				render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to get booking"))
				return
			}

			resp := api.NewBookingResponse(booking)
			render.JSON(w, r, Response{Booking: &resp})
			return
		}

		date := r.URL.Query().Get("date")
		if date == "" {
			log.Error("date is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "date is required"))
			return
		}

		bookings, err := getter.ListBookings(r.Context(), date)

		if errors.Is(err, response.ErrValidation) {
			log.Warn("invalid date", slog.String("date", date))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.VALIDATION_FAILED), err.Error()))
			return
		}

		if err != nil {
			log.Error("Failed to list bookings", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to list bookings"))
			return
		}

		log.Info("Bookings retrieved", slog.String("date", date), slog.Int("count", len(bookings)))

		render.JSON(w, r, ListResponse{
			Bookings: api.NewBookingResponses(bookings),
		})
	}
}
