package get

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"booking-service/internal/interval"
	"booking-service/pkg/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockGetter struct {
	mock.Mock
}

func (m *MockGetter) Availability(ctx context.Context, date, room string) ([]interval.Span, error) {
	args := m.Called(ctx, date, room)
	gaps, _ := args.Get(0).([]interval.Span)
	return gaps, args.Error(1)
}

func get(getter AvailabilityGetter, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	New(slog.New(slog.NewTextHandler(io.Discard, nil)), getter).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestAvailability(t *testing.T) {
	m := new(MockGetter)
	m.On("Availability", mock.Anything, "2024-05-06", "A").
		Return([]interval.Span{{Start: 420, End: 540}, {Start: 600, End: 1440}}, nil).Once()

	rec := get(m, "/availability?date=2024-05-06&room=A")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "A", resp.Room)
	require.Len(t, resp.Free, 2)
	assert.Equal(t, "07:00", resp.Free[0].StartTime)
	assert.Equal(t, "24:00", resp.Free[1].EndTime)
}

func TestAvailabilityBadQuery(t *testing.T) {
	m := new(MockGetter)
	m.On("Availability", mock.Anything, "2024-05-06", "Z").Return(nil, response.ErrValidation).Once()

	assert.Equal(t, http.StatusBadRequest, get(m, "/availability?date=2024-05-06").Code)
	assert.Equal(t, http.StatusBadRequest, get(m, "/availability?date=2024-05-06&room=Z").Code)
}

func TestAvailabilityWindow(t *testing.T) {
	m := new(MockGetter)
	m.On("Availability", mock.Anything, "2024-05-06", "A").
		Return([]interval.Span{{Start: 420, End: 540}, {Start: 600, End: 1440}}, nil)

	rec := get(m, "/availability?date=2024-05-06&room=A&from=08:00&to=12:30")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Free, 2)
	assert.Equal(t, "08:00", resp.Free[0].StartTime)
	assert.Equal(t, "09:00", resp.Free[0].EndTime)
	assert.Equal(t, "10:00", resp.Free[1].StartTime)
	assert.Equal(t, "12:30", resp.Free[1].EndTime)

	rec = get(m, "/availability?date=2024-05-06&room=A&from=09:00&to=10:00")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Free)
}

func TestAvailabilityBadWindow(t *testing.T) {
	m := new(MockGetter)

	for _, query := range []string{"from=nine", "to=25:99", "from=12:00&to=11:00"} {
		rec := get(m, "/availability?date=2024-05-06&room=A&"+query)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
	m.AssertNotCalled(t, "Availability", mock.Anything, mock.Anything, mock.Anything)
}
