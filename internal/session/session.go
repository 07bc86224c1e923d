// Package session drives one editing session: a draft machine and a booking
// store fed from a single event queue.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"booking-service/internal/draft"
	"booking-service/internal/models"
	"booking-service/internal/store"
	"booking-service/pkg/sl"

	"github.com/google/uuid"
)

var ErrClosed = errors.New("session is closed")

// Snapshot is the view a UI renders after each event. Bookings holds the
// machine's date and room once that date has loaded.
type Snapshot struct {
	Machine   draft.Machine    `json:"machine"`
	Bookings  []models.Booking `json:"bookings"`
	CanSave   bool             `json:"can_save"`
	LastError error            `json:"-"`
	Pending   int              `json:"pending"`
}

type Session struct {
	log   *slog.Logger
	store *store.Store
	newID func() string

	queue   chan any
	results chan any
	changed chan struct{}
	done    chan struct{}

	// loop-owned
	machine   draft.Machine
	lastErr   error
	pending   int
	requested string

	mu   sync.Mutex
	snap Snapshot
}

type saveRequest struct{}

type deleteRequest struct {
	id string
}

type saveResult struct {
	draft draft.Draft
	err   error
}

type deleteResult struct {
	id  string
	err error
}

type loadResult struct {
	date string
	err  error
}

func New(log *slog.Logger, st *store.Store, grid draft.Grid, date, room string) *Session {
	s := &Session{
		log:     log,
		store:   st,
		newID:   uuid.NewString,
		queue:   make(chan any, 64),
		results: make(chan any, 16),
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
		machine: draft.New(grid, date, room),
	}
	s.publish()
	return s
}

// Post queues a pointer, detail or scope event for the loop.
func (s *Session) Post(ev draft.Event) error {
	return s.enqueue(ev)
}

// Save submits the active draft. The draft leaves the editor at once and
// comes back if the backend rejects it.
func (s *Session) Save() error {
	return s.enqueue(saveRequest{})
}

func (s *Session) Delete(id string) error {
	return s.enqueue(deleteRequest{id: id})
}

func (s *Session) enqueue(msg any) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	select {
	case s.queue <- msg:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

// Snapshot returns the state after the last processed event.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Run processes events one at a time until ctx is done. Store listening and
// in-flight requests are bound to ctx and finish before Run returns.
func (s *Session) Run(ctx context.Context) error {
	const op = "session.Run"

	log := s.log.With(slog.String("op", op))
	defer close(s.done)

	var wg sync.WaitGroup
	defer wg.Wait()

	s.store.OnChange(func() {
		select {
		case s.changed <- struct{}{}:
		default:
		}
	})
	defer s.store.OnChange(nil)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.store.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("store listener stopped", sl.Err(err))
		}
	}()

	s.load(ctx, &wg, s.machine.Date)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-s.queue:
			s.handle(ctx, &wg, msg)
		case res := <-s.results:
			s.handleResult(res)
		case <-s.changed:
			s.machine = s.machine.Revalidate(s.bookings())
		}
		s.publish()
	}
}

func (s *Session) handle(ctx context.Context, wg *sync.WaitGroup, msg any) {
	switch m := msg.(type) {
	case draft.SelectScope:
		s.machine = s.machine.Apply(m, nil)
		if m.Date != s.requested {
			s.load(ctx, wg, m.Date)
		}
	case draft.Event:
		s.machine = s.machine.Apply(m, s.bookings())
	case saveRequest:
		s.save(ctx, wg)
	case deleteRequest:
		s.pending++
		s.spawn(ctx, wg, func() any {
			return deleteResult{id: m.id, err: s.store.Remove(ctx, m.id)}
		})
	}
}

func (s *Session) save(ctx context.Context, wg *sync.WaitGroup) {
	if s.machine.Draft == nil {
		s.lastErr = draft.ErrNoDraft
		return
	}

	next, b, err := s.machine.Save(s.bookings(), s.newID)
	s.machine = next
	if err != nil {
		s.lastErr = err
		return
	}

	// carries the id so a retry after a lost response reuses it
	d := draft.FromBooking(b)
	s.lastErr = nil
	s.pending++

	s.spawn(ctx, wg, func() any {
		_, err := s.store.Create(ctx, b)
		return saveResult{draft: d, err: err}
	})
}

func (s *Session) handleResult(res any) {
	switch r := res.(type) {
	case saveResult:
		s.pending--
		if r.err == nil {
			s.log.Debug("booking saved", slog.String("id", r.draft.ID))
			return
		}
		s.log.Info("booking rejected", slog.String("id", r.draft.ID), sl.Err(r.err))
		s.lastErr = r.err
		s.restore(r.draft)
	case deleteResult:
		s.pending--
		if r.err != nil {
			s.log.Info("delete failed", slog.String("id", r.id), sl.Err(r.err))
			s.lastErr = r.err
		}
	case loadResult:
		if r.err != nil {
			// selecting the date again retries the load
			if r.date == s.requested {
				s.requested = ""
			}
			if !errors.Is(r.err, context.Canceled) {
				s.lastErr = fmt.Errorf("load %s: %w", r.date, r.err)
			}
		}
		s.machine = s.machine.Revalidate(s.bookings())
	}
}

// restore brings a rejected draft back only when the editor is idle on the
// same scope, so it never clobbers newer work.
func (s *Session) restore(d draft.Draft) {
	m := s.machine
	if m.State != draft.StateIdle || m.Date != d.Date || m.Room != d.Room {
		return
	}
	s.machine = m.Restore(d, s.bookings())
}

func (s *Session) load(ctx context.Context, wg *sync.WaitGroup, date string) {
	s.requested = date
	s.spawn(ctx, wg, func() any {
		return loadResult{date: date, err: s.store.Load(ctx, date)}
	})
}

// spawn runs fn in the background and delivers its result to the loop unless
// the session is torn down first.
func (s *Session) spawn(ctx context.Context, wg *sync.WaitGroup, fn func() any) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		res := fn()
		select {
		case s.results <- res:
		case <-ctx.Done():
		}
	}()
}

// bookings is the machine's scope as far as it has loaded.
func (s *Session) bookings() []models.Booking {
	return s.store.Scope(s.machine.Date, s.machine.Room)
}

func (s *Session) publish() {
	snap := Snapshot{
		Machine:   s.machine,
		Bookings:  s.bookings(),
		CanSave:   s.machine.CanSave(),
		LastError: s.lastErr,
		Pending:   s.pending,
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}
