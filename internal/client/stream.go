package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"booking-service/api"
	"booking-service/internal/models"
	"booking-service/pkg/response"
	"booking-service/pkg/sl"
)

// Subscribe opens the server's change stream. The channel is closed when the
// connection ends or ctx is done; callers resubscribe and reload.
func (c *Client) Subscribe(ctx context.Context) (<-chan models.Change, error) {
	const op = "client.Subscribe"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/bookings/stream", nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", op, response.ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, fmt.Errorf("%s: %w", op, decodeError(resp))
	}

	out := make(chan models.Change)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		err := readEvents(resp.Body, func(ch models.Change) bool {
			select {
			case out <- ch:
				return true
			case <-ctx.Done():
				return false
			}
		})
		if err != nil && ctx.Err() == nil {
			c.log.Warn("change stream interrupted", slog.String("op", op), sl.Err(err))
		}
	}()

	return out, nil
}

// readEvents parses a text/event-stream body and hands each complete event to
// emit until emit returns false or the body ends.
func readEvents(r io.Reader, emit func(models.Change) bool) error {
	scanner := bufio.NewScanner(r)

	var event string
	var data strings.Builder

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if event == "" && data.Len() == 0 {
				continue
			}
			ch, err := decodeEvent(event, data.String())
			event = ""
			data.Reset()
			if err != nil {
				return err
			}
			if !emit(ch) {
				return nil
			}
		case strings.HasPrefix(line, ":"):
			// comment or keep-alive
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}

	return scanner.Err()
}

func decodeEvent(event, data string) (models.Change, error) {
	kind := models.ChangeKind(event)

	switch kind {
	case models.ChangeResync:
		return models.Change{Kind: kind}, nil
	case models.ChangeInserted, models.ChangeUpdated, models.ChangeDeleted:
	default:
		return models.Change{}, fmt.Errorf("unknown event %q", event)
	}

	var b api.BookingResponse
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		return models.Change{}, fmt.Errorf("decode %s event: %w", event, err)
	}

	return models.Change{Kind: kind, Booking: b.Booking()}, nil
}
