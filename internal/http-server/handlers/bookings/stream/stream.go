package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"booking-service/api"
	"booking-service/internal/models"
	"booking-service/pkg/response"
	"booking-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

const keepAliveInterval = 15 * time.Second

type ChangeSubscriber interface {
	Subscribe(ctx context.Context) (<-chan models.Change, error)
}

// New streams booking changes as Server-Sent Events. Each event is named
// after the change kind and carries the booking as JSON. When the
// subscription is dropped the stream ends with a resync event.
func New(log *slog.Logger, subscriber ChangeSubscriber) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.stream.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		changes, err := subscriber.Subscribe(r.Context())
		if err != nil {
			log.Error("Failed to subscribe", sl.Err(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "change stream unavailable"))
			return
		}

		rc := http.NewResponseController(w)
		if err := rc.SetWriteDeadline(time.Time{}); err != nil {
			log.Debug("write deadline not cleared", sl.Err(err))
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			log.Error("streaming unsupported", sl.Err(err))
			return
		}

		log.Info("Stream subscriber connected")
		defer log.Info("Stream subscriber disconnected")

		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-keepAlive.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
			case ch, ok := <-changes:
				if !ok {
					ch = models.Change{Kind: models.ChangeResync}
				}
				if err := writeEvent(w, ch); err != nil {
					log.Warn("Failed to write event", sl.Err(err))
					return
				}
				if !ok {
					_ = rc.Flush()
					return
				}
			}

			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, ch models.Change) error {
	data := []byte("{}")
	if ch.Kind != models.ChangeResync {
		var err error
		data, err = json.Marshal(api.NewBookingResponse(ch.Booking))
		if err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ch.Kind, data)
	return err
}
