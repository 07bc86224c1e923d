// Package memory is an in-process booking repository. It enforces the same
// per-(date, room) exclusion as the Postgres schema by re-checking overlaps
// under a single writer lock.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"booking-service/internal/conflict"
	"booking-service/internal/events"
	"booking-service/internal/models"
	"booking-service/pkg/response"

	"github.com/google/uuid"
)

type Storage struct {
	mu   sync.RWMutex
	rows map[string]models.Booking
	bus  *events.Bus
}

func New(log *slog.Logger) *Storage {
	return &Storage{
		rows: make(map[string]models.Booking),
		bus:  events.NewBus(log, 256),
	}
}

func (s *Storage) ListBookings(ctx context.Context, date string) ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Booking, 0)
	for _, b := range s.rows {
		if b.Date == date {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].Room < out[j].Room
	})

	return out, nil
}

func (s *Storage) GetBooking(ctx context.Context, id string) (models.Booking, error) {
	const op = "storage.memory.GetBooking"

	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.rows[id]
	if !ok {
		return models.Booking{}, fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}
	return b, nil
}

func (s *Storage) InsertBooking(ctx context.Context, b models.Booking) (models.Booking, error) {
	const op = "storage.memory.InsertBooking"

	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if err := conflict.CheckInvariants(b); err != nil {
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	if _, ok := s.rows[b.ID]; ok {
		s.mu.Unlock()
		return models.Booking{}, fmt.Errorf("%s: %w", op, response.ErrAlreadyExists)
	}
	if err := s.checkExclusion(b); err != nil {
		s.mu.Unlock()
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}
	s.rows[b.ID] = b
	s.mu.Unlock()

	s.bus.Publish(models.Change{Kind: models.ChangeInserted, Booking: b})
	return b, nil
}

func (s *Storage) UpdateBookingSpan(ctx context.Context, id string, start, end int) (models.Booking, error) {
	const op = "storage.memory.UpdateBookingSpan"

	s.mu.Lock()
	b, ok := s.rows[id]
	if !ok {
		s.mu.Unlock()
		return models.Booking{}, fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}
	b.Start, b.End = start, end
	if err := conflict.CheckInvariants(b); err != nil {
		s.mu.Unlock()
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.checkExclusion(b); err != nil {
		s.mu.Unlock()
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}
	s.rows[id] = b
	s.mu.Unlock()

	s.bus.Publish(models.Change{Kind: models.ChangeUpdated, Booking: b})
	return b, nil
}

func (s *Storage) DeleteBooking(ctx context.Context, id string) error {
	const op = "storage.memory.DeleteBooking"

	s.mu.Lock()
	b, ok := s.rows[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}
	delete(s.rows, id)
	s.mu.Unlock()

	s.bus.Publish(models.Change{Kind: models.ChangeDeleted, Booking: b})
	return nil
}

// Listen streams committed changes until ctx is done.
func (s *Storage) Listen(ctx context.Context) (<-chan models.Change, error) {
	const op = "storage.memory.Listen"

	ch, err := s.bus.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ch, nil
}

func (s *Storage) Close() error {
	s.bus.Close()
	return nil
}

// checkExclusion must be called with s.mu held for writing.
func (s *Storage) checkExclusion(b models.Booking) error {
	existing := make([]models.Booking, 0, len(s.rows))
	for _, row := range s.rows {
		existing = append(existing, row)
	}
	if hits := conflict.Conflicts(b, existing); len(hits) > 0 {
		return fmt.Errorf("%w: overlaps booking %s", response.ErrConstraintViolation, hits[0].ID)
	}
	return nil
}
