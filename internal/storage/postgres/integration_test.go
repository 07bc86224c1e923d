//go:build integration

package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"booking-service/internal/models"
	"booking-service/pkg/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStorage *Storage

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		// integration tests need a database
		os.Exit(0)
	}

	s, err := New(dsn, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		panic(err)
	}
	if err := s.Migrate(); err != nil {
		panic(err)
	}
	testStorage = s

	code := m.Run()
	s.Close()
	os.Exit(code)
}

func cleanup(t *testing.T, date string) {
	t.Helper()
	_, err := testStorage.db.Exec(`DELETE FROM bookings WHERE date = $1`, date)
	require.NoError(t, err)
}

func TestExclusionConstraint(t *testing.T) {
	const date = "2030-01-01"
	cleanup(t, date)
	ctx := context.Background()

	a, err := testStorage.InsertBooking(ctx, models.Booking{Date: date, Room: "A", Start: 540, End: 600, Teacher: "anna", Type: "lesson"})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)

	_, err = testStorage.InsertBooking(ctx, models.Booking{Date: date, Room: "A", Start: 590, End: 650, Teacher: "anna", Type: "lesson"})
	assert.True(t, errors.Is(err, response.ErrConstraintViolation))

	_, err = testStorage.InsertBooking(ctx, models.Booking{Date: date, Room: "A", Start: 600, End: 660, Teacher: "anna", Type: "lesson"})
	assert.NoError(t, err)

	_, err = testStorage.InsertBooking(ctx, models.Booking{Date: date, Room: "B", Start: 540, End: 600, Teacher: "anna", Type: "lesson"})
	assert.NoError(t, err)

	_, err = testStorage.InsertBooking(ctx, models.Booking{Date: date, Room: "C", Start: 540, End: 545, Teacher: "anna", Type: "lesson"})
	assert.True(t, errors.Is(err, response.ErrValidation))

	rows, err := testStorage.ListBookings(ctx, date)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 540, rows[0].Start)
	assert.Equal(t, 600, rows[2].Start)
}

func TestConcurrentInserts(t *testing.T) {
	const date = "2030-01-02"
	cleanup(t, date)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			_, err := testStorage.InsertBooking(ctx, models.Booking{Date: date, Room: "A", Start: 540 + offset, End: 600 + offset, Teacher: "anna", Type: "lesson"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
			} else if errors.Is(err, response.ErrConstraintViolation) {
				rejected++
			}
		}(i * 10)
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, rejected)
}

func TestUpdateAndDelete(t *testing.T) {
	const date = "2030-01-03"
	cleanup(t, date)
	ctx := context.Background()

	b, err := testStorage.InsertBooking(ctx, models.Booking{Date: date, Room: "A", Start: 540, End: 600, Teacher: "anna", Type: "lesson", Note: "first"})
	require.NoError(t, err)

	moved, err := testStorage.UpdateBookingSpan(ctx, b.ID, 700, 760)
	require.NoError(t, err)
	assert.Equal(t, "first", moved.Note)

	got, err := testStorage.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 700, got.Start)

	require.NoError(t, testStorage.DeleteBooking(ctx, b.ID))
	assert.True(t, errors.Is(testStorage.DeleteBooking(ctx, b.ID), response.ErrNotFound))

	_, err = testStorage.GetBooking(ctx, b.ID)
	assert.True(t, errors.Is(err, response.ErrNotFound))
}

func TestListen(t *testing.T) {
	const date = "2030-01-04"
	cleanup(t, date)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	changes, err := testStorage.Listen(ctx)
	require.NoError(t, err)

	b, err := testStorage.InsertBooking(ctx, models.Booking{Date: date, Room: "A", Start: 540, End: 600, Teacher: "anna", Type: "lesson"})
	require.NoError(t, err)
	require.NoError(t, testStorage.DeleteBooking(ctx, b.ID))

	var kinds []models.ChangeKind
	for len(kinds) < 2 {
		select {
		case ch := <-changes:
			if ch.Booking.ID != b.ID {
				continue
			}
			kinds = append(kinds, ch.Kind)
		case <-ctx.Done():
			t.Fatal("timed out waiting for notifications")
		}
	}
	assert.Equal(t, []models.ChangeKind{models.ChangeInserted, models.ChangeDeleted}, kinds)
}
