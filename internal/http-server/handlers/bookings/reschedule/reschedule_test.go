package reschedule

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"booking-service/internal/models"
	"booking-service/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRescheduler struct {
	mock.Mock
}

func (m *MockRescheduler) RescheduleBooking(ctx context.Context, id string, start, end int) (models.Booking, error) {
	args := m.Called(ctx, id, start, end)
	return args.Get(0).(models.Booking), args.Error(1)
}

func put(t *testing.T, rescheduler BookingRescheduler, id, payload string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Put("/bookings/{id}", New(slog.New(slog.NewTextHandler(io.Discard, nil)), rescheduler))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/bookings/"+id, bytes.NewBufferString(payload)))
	return rec
}

func TestReschedule(t *testing.T) {
	m := new(MockRescheduler)
	m.On("RescheduleBooking", mock.Anything, "a", 600, 660).
		Return(models.Booking{ID: "a", Date: "2024-05-06", Room: "A", Start: 600, End: 660}, nil).Once()

	rec := put(t, m, "a", `{"start":600,"end":660}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Booking)
	assert.Equal(t, "10:00", resp.Booking.StartTime)
}

func TestRescheduleErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{response.ErrNotFound, http.StatusNotFound},
		{response.ErrValidation, http.StatusBadRequest},
		{response.ErrConstraintViolation, http.StatusConflict},
		{response.ErrLocked, http.StatusLocked},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			m := new(MockRescheduler)
			m.On("RescheduleBooking", mock.Anything, "a", 600, 660).Return(models.Booking{}, tt.err).Once()

			rec := put(t, m, "a", `{"start":600,"end":660}`)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRescheduleBadBody(t *testing.T) {
	m := new(MockRescheduler)
	rec := put(t, m, "a", `nope`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	m.AssertNotCalled(t, "RescheduleBooking", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
