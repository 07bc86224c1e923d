package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"booking-service/internal/models"
	"booking-service/pkg/sl"

	"github.com/lib/pq"
)

const changesChannel = "booking_changes"

// Listen streams the notifications emitted by the bookings trigger. After the
// listener reconnects a resync change is sent, since notifications raised
// while disconnected are lost. The channel is closed when ctx is done.
func (s *Storage) Listen(ctx context.Context) (<-chan models.Change, error) {
	const op = "storage.postgres.Listen"

	log := s.log.With(slog.String("op", op))

	listener := pq.NewListener(s.storagePath, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn("listener event", slog.Int("event", int(ev)), sl.Err(err))
		}
	})

	if err := listener.Listen(changesChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make(chan models.Change, 64)

	go func() {
		defer close(out)
		defer listener.Close()

		ping := time.NewTicker(90 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ping.C:
				go listener.Ping()
			case n := <-listener.Notify:
				ch, ok := decodeNotification(n, log)
				if !ok {
					continue
				}
				select {
				case out <- ch:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// decodeNotification turns a notification into a change. A nil notification
// is how pq reports a reconnect.
func decodeNotification(n *pq.Notification, log *slog.Logger) (models.Change, bool) {
	if n == nil {
		return models.Change{Kind: models.ChangeResync, At: time.Now()}, true
	}

	var ch models.Change
	if err := json.Unmarshal([]byte(n.Extra), &ch); err != nil {
		log.Error("failed to decode notification", slog.String("payload", n.Extra), sl.Err(err))
		return models.Change{}, false
	}
	ch.At = time.Now()

	return ch, true
}
