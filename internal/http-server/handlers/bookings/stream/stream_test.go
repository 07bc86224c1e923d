package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"booking-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSubscriber struct {
	mock.Mock
}

func (m *MockSubscriber) Subscribe(ctx context.Context) (<-chan models.Change, error) {
	args := m.Called(ctx)
	ch, _ := args.Get(0).(<-chan models.Change)
	return ch, args.Error(1)
}

func TestStreamWritesEventsThenResync(t *testing.T) {
	changes := make(chan models.Change, 2)
	changes <- models.Change{
		Kind:    models.ChangeInserted,
		Booking: models.Booking{ID: "a", Date: "2024-05-06", Room: "A", Start: 540, End: 600, Teacher: "anna", Type: "lesson"},
	}
	changes <- models.Change{Kind: models.ChangeDeleted, Booking: models.Booking{ID: "a", Date: "2024-05-06", Room: "A"}}
	close(changes)

	sub := new(MockSubscriber)
	sub.On("Subscribe", mock.Anything).Return((<-chan models.Change)(changes), nil).Once()

	rec := httptest.NewRecorder()
	New(slog.New(slog.NewTextHandler(io.Discard, nil)), sub).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bookings/stream", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, ": connected\n\n"))
	assert.Contains(t, body, "event: inserted\ndata: {\"id\":\"a\"")
	assert.Contains(t, body, "\"start_time\":\"09:00\"")
	assert.Contains(t, body, "event: deleted\n")
	assert.True(t, strings.HasSuffix(body, "event: resync\ndata: {}\n\n"))

	inserted := strings.Index(body, "event: inserted")
	deleted := strings.Index(body, "event: deleted")
	assert.Less(t, inserted, deleted)
}

func TestStreamStopsOnClientDisconnect(t *testing.T) {
	changes := make(chan models.Change)
	sub := new(MockSubscriber)
	sub.On("Subscribe", mock.Anything).Return((<-chan models.Change)(changes), nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	New(slog.New(slog.NewTextHandler(io.Discard, nil)), sub).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bookings/stream", nil).WithContext(ctx))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "event:")
}

func TestStreamSubscribeFailure(t *testing.T) {
	sub := new(MockSubscriber)
	sub.On("Subscribe", mock.Anything).Return(nil, errors.New("bus closed")).Once()

	rec := httptest.NewRecorder()
	New(slog.New(slog.NewTextHandler(io.Discard, nil)), sub).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bookings/stream", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
