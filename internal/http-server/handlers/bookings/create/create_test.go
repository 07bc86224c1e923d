package create

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"booking-service/internal/models"
	"booking-service/pkg/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCreator struct {
	mock.Mock
}

func (m *MockCreator) CreateBooking(ctx context.Context, b models.Booking) (models.Booking, error) {
	args := m.Called(ctx, b)
	return args.Get(0).(models.Booking), args.Error(1)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const body = `{"date":"2024-05-06","room":"A","start":540,"end":600,"teacher":"anna","type":"lesson"}`

var requested = models.Booking{Date: "2024-05-06", Room: "A", Start: 540, End: 600, Teacher: "anna", Type: "lesson"}

func do(t *testing.T, creator BookingCreator, payload string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/bookings", bytes.NewBufferString(payload))
	rec := httptest.NewRecorder()
	New(newTestLogger(), creator).ServeHTTP(rec, req)
	return rec
}

func TestCreateHandler(t *testing.T) {
	creator := new(MockCreator)
	stored := requested
	stored.ID = "9f1c2b4e-0000-4000-8000-000000000001"
	creator.On("CreateBooking", mock.Anything, requested).Return(stored, nil).Once()

	rec := do(t, creator, body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Booking struct {
			ID        string `json:"id"`
			StartTime string `json:"start_time"`
		} `json:"booking"`
		Error *response.ResponseError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, stored.ID, resp.Booking.ID)
	assert.Equal(t, "09:00", resp.Booking.StartTime)
	assert.Nil(t, resp.Error)
	creator.AssertExpectations(t)
}

func TestCreateHandlerErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   response.ErrCode
	}{
		{"Validation", fmt.Errorf("svc: %w", response.ErrValidation), http.StatusBadRequest, response.VALIDATION_FAILED},
		{"SlotTaken", fmt.Errorf("svc: %w", response.ErrConstraintViolation), http.StatusConflict, response.SLOT_TAKEN},
		{"DuplicateID", response.ErrAlreadyExists, http.StatusConflict, response.CONFLICT},
		{"Locked", response.ErrLocked, http.StatusLocked, response.LOCKED},
		{"Internal", fmt.Errorf("boom"), http.StatusInternalServerError, response.FAILED_REQUEST},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creator := new(MockCreator)
			creator.On("CreateBooking", mock.Anything, requested).Return(models.Booking{}, tt.err).Once()

			rec := do(t, creator, body)
			assert.Equal(t, tt.status, rec.Code)

			var resp response.Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, string(tt.code), resp.Code)
		})
	}
}

func TestCreateHandlerBadBody(t *testing.T) {
	creator := new(MockCreator)

	rec := do(t, creator, `{"date":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, creator, `{"start":540,"end":600}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	creator.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
}
