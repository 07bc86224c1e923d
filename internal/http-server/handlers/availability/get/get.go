package get

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"booking-service/api"
	"booking-service/internal/interval"
	"booking-service/pkg/response"
	"booking-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type AvailabilityGetter interface {
	Availability(ctx context.Context, date, room string) ([]interval.Span, error)
}

type Response struct {
	response.Response
	api.AvailabilityResponse
}

func New(log *slog.Logger, getter AvailabilityGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.availability.get.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		date := r.URL.Query().Get("date")
		room := r.URL.Query().Get("room")

		if date == "" || room == "" {
			log.Error("date or room is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "date and room are required"))
			return
		}

		window, err := parseWindow(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
		if err != nil {
			log.Error("invalid time window", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), err.Error()))
			return
		}

		gaps, err := getter.Availability(r.Context(), date, room)

		if errors.Is(err, response.ErrValidation) {
			log.Warn("invalid availability query", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.VALIDATION_FAILED), err.Error()))
			return
		}

		if err != nil {
			log.Error("Failed to get availability", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to get availability"))
			return
		}

		gaps = clip(gaps, window)

		log.Info("Availability retrieved", slog.String("date", date), slog.String("room", room), slog.Int("gaps", len(gaps)))

		render.JSON(w, r, Response{
			AvailabilityResponse: api.NewAvailabilityResponse(date, room, gaps),
		})
	}
}

// parseWindow reads the optional HH:MM bounds of the query. Missing bounds
// default to the bookable day.
func parseWindow(from, to string) (interval.Span, error) {
	window := interval.Span{Start: interval.StartMin, End: interval.EndMin}

	if from != "" {
		m, err := interval.ParseClock(from)
		if err != nil {
			return window, err
		}
		window.Start = m
	}
	if to != "" {
		m, err := interval.ParseClock(to)
		if err != nil {
			return window, err
		}
		window.End = m
	}

	if window.Start >= window.End {
		return window, fmt.Errorf("window %s is empty", window)
	}
	return window, nil
}

func clip(gaps []interval.Span, window interval.Span) []interval.Span {
	out := make([]interval.Span, 0, len(gaps))
	for _, g := range gaps {
		start, end := max(g.Start, window.Start), min(g.End, window.End)
		if start < end {
			out = append(out, interval.Span{Start: start, End: end})
		}
	}
	return out
}
