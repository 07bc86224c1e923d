package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"booking-service/internal/config"
	"booking-service/internal/conflict"
	"booking-service/internal/events"
	"booking-service/internal/interval"
	"booking-service/internal/lock"
	"booking-service/internal/metrics"
	"booking-service/internal/models"
	"booking-service/internal/store"
	"booking-service/pkg/response"
	"booking-service/pkg/sl"

	"github.com/google/uuid"
)

type Repository interface {
	ListBookings(ctx context.Context, date string) ([]models.Booking, error)
	GetBooking(ctx context.Context, id string) (models.Booking, error)
	InsertBooking(ctx context.Context, b models.Booking) (models.Booking, error)
	UpdateBookingSpan(ctx context.Context, id string, start, end int) (models.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
	Listen(ctx context.Context) (<-chan models.Change, error)
}

type Service struct {
	log     *slog.Logger
	repo    Repository
	locker  lock.Locker
	bus     *events.Bus
	lockCfg config.Lock
	catalog config.Catalog
}

func NewService(log *slog.Logger, repo Repository, locker lock.Locker, lockCfg config.Lock, catalog config.Catalog) *Service {
	if lockCfg.TTL <= 0 {
		lockCfg.TTL = 5 * time.Second
	}
	if lockCfg.Wait <= 0 {
		lockCfg.Wait = 2 * time.Second
	}

	return &Service{
		log:     log,
		repo:    repo,
		locker:  locker,
		bus:     events.NewBus(log, 64),
		lockCfg: lockCfg,
		catalog: catalog,
	}
}

func scopeKey(date, room string) string {
	return fmt.Sprintf("booking:%s:%s", date, room)
}

func (s *Service) ListBookings(ctx context.Context, date string) ([]models.Booking, error) {
	const op = "service.ListBookings"

	if err := validateDate(date); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	bookings, err := s.repo.ListBookings(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bookings, nil
}

func (s *Service) GetBooking(ctx context.Context, id string) (models.Booking, error) {
	const op = "service.GetBooking"

	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	return b, nil
}

// CreateBooking stores b after re-checking it against the committed bookings
// of its date and room. Writers to one (date, room) are serialized so that of
// two racing overlapping requests one is stored and the other gets
// ErrConstraintViolation. Re-sending an already stored booking with the same
// ID returns the stored row.
func (s *Service) CreateBooking(ctx context.Context, b models.Booking) (models.Booking, error) {
	const op = "service.CreateBooking"

	if b.ID == "" {
		b.ID = uuid.NewString()
	} else if _, err := uuid.Parse(b.ID); err != nil {
		return models.Booking{}, fmt.Errorf("%s: %w: id must be a uuid", op, response.ErrValidation)
	}

	if err := s.validate(b); err != nil {
		metrics.IncBookingCreated("invalid")
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	unlock, err := s.lockScope(ctx, b.Date, b.Room)
	if err != nil {
		metrics.IncBookingCreated("locked")
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}
	defer unlock()

	if err := s.precheck(ctx, b); err != nil {
		metrics.IncBookingCreated("conflict")
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	created, err := s.repo.InsertBooking(ctx, b)
	if errors.Is(err, response.ErrAlreadyExists) {
		if prev, gerr := s.repo.GetBooking(ctx, b.ID); gerr == nil && prev == b {
			metrics.IncBookingCreated("duplicate")
			return prev, nil
		}
	}
	if err != nil {
		metrics.IncBookingCreated(resultLabel(err))
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	metrics.IncBookingCreated("created")
	s.log.Info("booking created",
		slog.String("id", created.ID),
		slog.String("date", created.Date),
		slog.String("room", created.Room),
		slog.String("span", interval.Span{Start: created.Start, End: created.End}.String()),
	)

	return created, nil
}

// RescheduleBooking replaces the interval of an existing booking.
func (s *Service) RescheduleBooking(ctx context.Context, id string, start, end int) (models.Booking, error) {
	const op = "service.RescheduleBooking"

	current, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	next := current
	next.Start, next.End = start, end
	if err := conflict.CheckInvariants(next); err != nil {
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	unlock, err := s.lockScope(ctx, next.Date, next.Room)
	if err != nil {
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}
	defer unlock()

	if err := s.precheck(ctx, next); err != nil {
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	updated, err := s.repo.UpdateBookingSpan(ctx, id, start, end)
	if err != nil {
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("booking rescheduled",
		slog.String("id", id),
		slog.String("from", interval.Span{Start: current.Start, End: current.End}.String()),
		slog.String("to", interval.Span{Start: updated.Start, End: updated.End}.String()),
	)

	return updated, nil
}

func (s *Service) DeleteBooking(ctx context.Context, id string) error {
	const op = "service.DeleteBooking"

	if err := s.repo.DeleteBooking(ctx, id); err != nil {
		metrics.IncBookingDeleted(resultLabel(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	metrics.IncBookingDeleted("deleted")
	s.log.Info("booking deleted", slog.String("id", id))

	return nil
}

// Availability returns the free intervals of room on date.
func (s *Service) Availability(ctx context.Context, date, room string) ([]interval.Span, error) {
	const op = "service.Availability"

	if err := validateDate(date); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if room == "" {
		return nil, fmt.Errorf("%s: %w: room is required", op, response.ErrValidation)
	}
	if !s.catalog.HasRoom(room) {
		return nil, fmt.Errorf("%s: %w: unknown room %q", op, response.ErrValidation, room)
	}

	bookings, err := s.repo.ListBookings(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return conflict.FreeGaps(bookings, date, room), nil
}

// Subscribe streams every committed change until ctx is done. Run must be
// running for changes to arrive.
func (s *Service) Subscribe(ctx context.Context) (<-chan models.Change, error) {
	const op = "service.Subscribe"

	ch, err := s.bus.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ch, nil
}

// Run forwards the repository's change stream to subscribers until ctx is
// done. When the stream breaks subscribers are told to resync.
func (s *Service) Run(ctx context.Context) error {
	const op = "service.Run"

	log := s.log.With(slog.String("op", op))
	defer s.bus.Close()

	for {
		changes, err := s.repo.Listen(ctx)
		if err != nil {
			log.Error("failed to listen for changes", sl.Err(err))
		} else {
			for ch := range changes {
				s.bus.Publish(ch)
			}
		}

		if ctx.Err() != nil {
			return nil
		}

		s.bus.Publish(models.Change{Kind: models.ChangeResync})

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
}

// The service doubles as an in-process store backend.
var _ store.Backend = (*Service)(nil)

func (s *Service) validate(b models.Booking) error {
	if err := conflict.CheckInvariants(b); err != nil {
		return err
	}
	if err := s.catalog.Validate(b.Room, b.Teacher, b.Type); err != nil {
		return fmt.Errorf("%w: %s", response.ErrValidation, err)
	}
	return nil
}

func (s *Service) precheck(ctx context.Context, b models.Booking) error {
	existing, err := s.repo.ListBookings(ctx, b.Date)
	if err != nil {
		return err
	}
	if hits := conflict.Conflicts(b, existing); len(hits) > 0 {
		return fmt.Errorf("%w: overlaps %s", response.ErrConstraintViolation, interval.Span{Start: hits[0].Start, End: hits[0].End})
	}
	return nil
}

func (s *Service) lockScope(ctx context.Context, date, room string) (func(), error) {
	key := scopeKey(date, room)
	release, err := lock.Acquire(ctx, s.locker, key, s.lockCfg.TTL, s.lockCfg.Wait)
	if err != nil {
		return nil, err
	}

	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("failed to release lock", slog.String("key", key), sl.Err(err))
		}
	}, nil
}

func validateDate(date string) error {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return fmt.Errorf("%w: date %q is not YYYY-MM-DD", response.ErrValidation, date)
	}
	return nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, response.ErrConstraintViolation):
		return "conflict"
	case errors.Is(err, response.ErrValidation):
		return "invalid"
	case errors.Is(err, response.ErrNotFound):
		return "not_found"
	case errors.Is(err, response.ErrAlreadyExists):
		return "duplicate"
	default:
		return "error"
	}
}
