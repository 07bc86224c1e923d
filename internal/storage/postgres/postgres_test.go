package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"booking-service/internal/models"
	"booking-service/pkg/response"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{"NoRows", sql.ErrNoRows, response.ErrNotFound},
		{"Exclusion", &pq.Error{Code: codeExclusionViolation}, response.ErrConstraintViolation},
		{"Check", &pq.Error{Code: codeCheckViolation, Constraint: "bookings_min_duration"}, response.ErrValidation},
		{"Unique", &pq.Error{Code: codeUniqueViolation, Constraint: "bookings_pkey"}, response.ErrAlreadyExists},
		{"Wrapped", fmt.Errorf("exec: %w", &pq.Error{Code: codeExclusionViolation}), response.ErrConstraintViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(mapError(tt.err), tt.expected))
		})
	}

	other := errors.New("connection refused")
	assert.Equal(t, other, mapError(other))
}

func TestDecodeNotification(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	ch, ok := decodeNotification(&pq.Notification{
		Channel: changesChannel,
		Extra:   `{"kind":"deleted","booking":{"id":"0b8e","date":"2024-05-06","room":"A","start":540,"end":600,"teacher":"anna","type":"lesson","note":""}}`,
	}, log)
	require.True(t, ok)
	assert.Equal(t, models.ChangeDeleted, ch.Kind)
	assert.Equal(t, models.Booking{ID: "0b8e", Date: "2024-05-06", Room: "A", Start: 540, End: 600, Teacher: "anna", Type: "lesson"}, ch.Booking)

	ch, ok = decodeNotification(nil, log)
	require.True(t, ok)
	assert.Equal(t, models.ChangeResync, ch.Kind)

	_, ok = decodeNotification(&pq.Notification{Extra: "not json"}, log)
	assert.False(t, ok)
}
