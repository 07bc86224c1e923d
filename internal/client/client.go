// Package client talks to the booking HTTP API and satisfies store.Backend,
// so a remote service can back a local booking store.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"booking-service/api"
	"booking-service/internal/models"
	"booking-service/internal/store"
	"booking-service/pkg/response"

	"github.com/go-chi/render"
)

const defaultTimeout = 10 * time.Second

type Client struct {
	baseURL string
	http    *http.Client
	stream  *http.Client
	log     *slog.Logger
}

var _ store.Backend = (*Client)(nil)

// New returns a client for the API rooted at baseURL. A nil httpClient gets
// a default with a request timeout; the change stream always uses a copy
// without one.
func New(baseURL string, httpClient *http.Client, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	stream := *httpClient
	stream.Timeout = 0

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		stream:  &stream,
		log:     log,
	}
}

func (c *Client) ListBookings(ctx context.Context, date string) ([]models.Booking, error) {
	const op = "client.ListBookings"

	var out struct {
		Bookings []api.BookingResponse `json:"bookings"`
	}
	q := url.Values{"date": {date}}
	if err := c.do(ctx, http.MethodGet, "/bookings?"+q.Encode(), nil, http.StatusOK, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	bookings := make([]models.Booking, len(out.Bookings))
	for i, b := range out.Bookings {
		bookings[i] = b.Booking()
	}
	return bookings, nil
}

func (c *Client) GetBooking(ctx context.Context, id string) (models.Booking, error) {
	const op = "client.GetBooking"

	var out struct {
		Booking api.BookingResponse `json:"booking"`
	}
	if err := c.do(ctx, http.MethodGet, "/bookings/"+url.PathEscape(id), nil, http.StatusOK, &out); err != nil {
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}
	return out.Booking.Booking(), nil
}

func (c *Client) CreateBooking(ctx context.Context, b models.Booking) (models.Booking, error) {
	const op = "client.CreateBooking"

	req := api.BookingRequest{
		ID:      b.ID,
		Date:    b.Date,
		Room:    b.Room,
		Start:   b.Start,
		End:     b.End,
		Teacher: b.Teacher,
		Type:    b.Type,
		Note:    b.Note,
	}

	var out struct {
		Booking api.BookingResponse `json:"booking"`
	}
	if err := c.do(ctx, http.MethodPost, "/bookings", req, http.StatusCreated, &out); err != nil {
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}
	return out.Booking.Booking(), nil
}

func (c *Client) RescheduleBooking(ctx context.Context, id string, start, end int) (models.Booking, error) {
	const op = "client.RescheduleBooking"

	var out struct {
		Booking api.BookingResponse `json:"booking"`
	}
	body := api.RescheduleRequest{Start: start, End: end}
	if err := c.do(ctx, http.MethodPut, "/bookings/"+url.PathEscape(id), body, http.StatusOK, &out); err != nil {
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}
	return out.Booking.Booking(), nil
}

func (c *Client) DeleteBooking(ctx context.Context, id string) error {
	const op = "client.DeleteBooking"

	if err := c.do(ctx, http.MethodDelete, "/bookings/"+url.PathEscape(id), nil, http.StatusNoContent, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in any, want int, out any) error {
	var body io.Reader
	if in != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return err
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", response.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := render.DecodeJSON(resp.Body, out); err != nil {
		return fmt.Errorf("%w: decode response: %s", response.ErrTransport, err)
	}
	return nil
}

// decodeError turns a non-success response into the matching sentinel.
func decodeError(resp *http.Response) error {
	var body response.Response
	_ = render.DecodeJSON(resp.Body, &body)

	msg := body.Message
	if msg == "" {
		msg = resp.Status
	}

	return fmt.Errorf("%w: %s", statusError(resp.StatusCode, body.Code), msg)
}

func statusError(status int, code string) error {
	switch {
	case status == http.StatusBadRequest && code == string(response.BAD_REQUEST):
		return response.ErrBadRequest
	case status == http.StatusBadRequest:
		return response.ErrValidation
	case status == http.StatusNotFound:
		return response.ErrNotFound
	case status == http.StatusConflict && code == string(response.SLOT_TAKEN):
		return response.ErrConstraintViolation
	case status == http.StatusConflict:
		return response.ErrAlreadyExists
	case status == http.StatusLocked:
		return response.ErrLocked
	default:
		return response.ErrTransport
	}
}
