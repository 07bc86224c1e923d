// Package store keeps the local view of the bookings for the selected day
// and reconciles it with the backend's change stream.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"booking-service/internal/models"
	"booking-service/pkg/sl"

	"golang.org/x/time/rate"
)

type Backend interface {
	ListBookings(ctx context.Context, date string) ([]models.Booking, error)
	CreateBooking(ctx context.Context, b models.Booking) (models.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
	Subscribe(ctx context.Context) (<-chan models.Change, error)
}

type Store struct {
	backend Backend
	log     *slog.Logger
	limiter *rate.Limiter

	mu       sync.Mutex
	date     string
	selected string
	set      Set
	loadSeq  int
	loading  bool
	journal  []models.Change
	err      error
	onChange func()
}

func New(backend Backend, log *slog.Logger) *Store {
	return &Store{
		backend: backend,
		log:     log,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		set:     NewSet(),
	}
}

// OnChange registers fn to be called after every change to the local view.
// fn runs without the store lock held.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// SetResubscribeInterval bounds how often Listen reconnects.
func (s *Store) SetResubscribeInterval(d time.Duration) {
	s.limiter.SetLimit(rate.Every(d))
}

// Load replaces the view with the backend's bookings for date. Changes that
// arrive while the fetch is in flight are replayed on top of the result. On
// failure the previous view is kept.
func (s *Store) Load(ctx context.Context, date string) error {
	const op = "store.Store.Load"

	s.mu.Lock()
	s.loadSeq++
	seq := s.loadSeq
	s.selected = date
	s.loading = true
	s.journal = nil
	s.mu.Unlock()

	rows, err := s.backend.ListBookings(ctx, date)

	s.mu.Lock()
	if seq != s.loadSeq {
		// superseded by a later Load
		s.mu.Unlock()
		return nil
	}
	s.loading = false
	journal := s.journal
	s.journal = nil

	if err != nil {
		err = fmt.Errorf("%s: %w", op, err)
		s.err = err
		s.mu.Unlock()
		return err
	}

	set := s.set.Replace(rows)
	for _, ch := range journal {
		set = set.Apply(ch)
	}
	s.set = set
	s.date = date
	s.err = nil
	notify := s.onChange
	s.mu.Unlock()

	s.log.Debug("bookings loaded", slog.String("date", date), slog.Int("count", len(rows)), slog.Int("replayed", len(journal)))

	if notify != nil {
		notify()
	}
	return nil
}

// Create submits b. The returned row is added to the view only once the
// backend accepts it; on error the view is untouched.
func (s *Store) Create(ctx context.Context, b models.Booking) (models.Booking, error) {
	const op = "store.Store.Create"

	created, err := s.backend.CreateBooking(ctx, b)
	if err != nil {
		return models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	s.Apply(models.Change{Kind: models.ChangeInserted, Booking: created})
	return created, nil
}

func (s *Store) Remove(ctx context.Context, id string) error {
	const op = "store.Store.Remove"

	if err := s.backend.DeleteBooking(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.Apply(models.Change{Kind: models.ChangeDeleted, Booking: models.Booking{ID: id}})
	return nil
}

// Apply reconciles one change into the view.
func (s *Store) Apply(ch models.Change) {
	s.mu.Lock()
	s.set = s.set.Apply(ch)
	if s.loading {
		s.journal = append(s.journal, ch)
	}
	notify := s.onChange
	s.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// Listen consumes the backend's change stream until ctx is done. When the
// stream closes or asks for a resync it resubscribes and reloads the
// selected date, since changes may have been missed in between.
func (s *Store) Listen(ctx context.Context) error {
	const op = "store.Store.Listen"

	log := s.log.With(slog.String("op", op))

	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return ctx.Err()
		}

		changes, err := s.backend.Subscribe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("failed to subscribe", sl.Err(err))
			s.setErr(fmt.Errorf("%s: %w", op, err))
			continue
		}

		s.reload(ctx, log)

		if err := s.consume(ctx, changes, log); err != nil {
			return err
		}

		log.Info("change stream closed, resubscribing")
	}
}

func (s *Store) consume(ctx context.Context, changes <-chan models.Change, log *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ch, ok := <-changes:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return nil
			}
			if ch.Kind == models.ChangeResync {
				s.reload(ctx, log)
				continue
			}
			s.Apply(ch)
		}
	}
}

// reload fetches the last requested date, which may not have loaded yet.
func (s *Store) reload(ctx context.Context, log *slog.Logger) {
	s.mu.Lock()
	date := s.selected
	s.mu.Unlock()
	if date == "" {
		return
	}
	if err := s.Load(ctx, date); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("failed to reload bookings", slog.String("date", date), sl.Err(err))
	}
}

func (s *Store) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Date is the date of the last successful Load.
func (s *Store) Date() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.date
}

// Bookings returns the last loaded date's bookings ordered by start.
func (s *Store) Bookings() []models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set.ForDate(s.date)
}

// Scope returns the bookings of room on date, ordered by start. It is empty
// until date has loaded, so a failed load never shows another day's rows.
func (s *Store) Scope(date, room string) []models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()

	if date == "" || date != s.date {
		return nil
	}

	all := s.set.ForDate(date)
	out := all[:0]
	for _, b := range all {
		if b.Room == room {
			out = append(out, b)
		}
	}
	return out
}

// Snapshot returns a copy of the reconciled set.
func (s *Store) Snapshot() Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set.clone()
}

// Err returns the last load or subscription error, cleared by a successful Load.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
