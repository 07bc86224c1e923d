package router

import (
	"log/slog"
	"net/http"

	availabilityGet "booking-service/internal/http-server/handlers/availability/get"
	bookingCreate "booking-service/internal/http-server/handlers/bookings/create"
	bookingDelete "booking-service/internal/http-server/handlers/bookings/delete"
	bookingGet "booking-service/internal/http-server/handlers/bookings/get"
	bookingReschedule "booking-service/internal/http-server/handlers/bookings/reschedule"
	bookingStream "booking-service/internal/http-server/handlers/bookings/stream"
	"booking-service/pkg/middleware/mwLogger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Service interface {
	bookingCreate.BookingCreator
	bookingGet.BookingGetter
	bookingReschedule.BookingRescheduler
	bookingDelete.BookingDeleter
	bookingStream.ChangeSubscriber
	availabilityGet.AvailabilityGetter
}

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// New builds the HTTP API. The change stream is mounted outside the request
// logger so its writer keeps flush and deadline control.
func New(log *slog.Logger, service Service) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(CORS)

	router.Get("/bookings/stream", bookingStream.New(log, service))
	router.Handle("/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		r.Use(mwLogger.New(log))

		// Bookings
		r.Get("/bookings", bookingGet.New(log, service))
		r.Post("/bookings", bookingCreate.New(log, service))
		r.Get("/bookings/{id}", bookingGet.New(log, service))
		r.Put("/bookings/{id}", bookingReschedule.New(log, service))
		r.Delete("/bookings/{id}", bookingDelete.New(log, service))

		// Availability
		r.Get("/availability", availabilityGet.New(log, service))
	})

	return router
}
