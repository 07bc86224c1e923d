// Package draft turns pointer input on the day grid into a validated
// booking candidate.
//
// Machine is a plain value: Apply never mutates its receiver and returns the
// next state, so a Machine can be logged, serialized and replayed.
package draft

import (
	"errors"
	"fmt"

	"booking-service/internal/conflict"
	"booking-service/internal/interval"
	"booking-service/internal/models"
	"booking-service/pkg/response"
)

var (
	ErrIncomplete    = errors.New("teacher and type are required")
	ErrNoDraft       = errors.New("no active draft")
	ErrGestureActive = errors.New("gesture in progress")
)

// Draft is an unsaved booking. ID is empty until the draft is first saved.
type Draft struct {
	ID      string `json:"id,omitempty"`
	Date    string `json:"date"`
	Room    string `json:"room"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Teacher string `json:"teacher,omitempty"`
	Type    string `json:"type,omitempty"`
	Note    string `json:"note,omitempty"`
}

// FromBooking turns a submitted booking back into a draft, keeping its ID.
func FromBooking(b models.Booking) Draft {
	return Draft(b)
}

func (d Draft) candidate() models.Booking {
	return models.Booking(d)
}

// ReadyDraft is a draft with every required field present. It can only be
// obtained from Draft.Ready.
type ReadyDraft struct {
	d Draft
}

// Ready checks the fields a booking requires and the row invariants.
func (d Draft) Ready() (ReadyDraft, error) {
	const op = "draft.Draft.Ready"

	if d.Teacher == "" || d.Type == "" {
		return ReadyDraft{}, fmt.Errorf("%s: %w", op, ErrIncomplete)
	}
	if err := conflict.CheckInvariants(d.candidate()); err != nil {
		return ReadyDraft{}, fmt.Errorf("%s: %w", op, err)
	}

	return ReadyDraft{d: d}, nil
}

// Booking builds the row to submit. A draft that already carries an ID keeps
// it so a retried save is recognized by the server.
func (r ReadyDraft) Booking(id string) models.Booking {
	b := r.d.candidate()
	if b.ID == "" {
		b.ID = id
	}
	return b
}

// validate reports whether d may be saved against existing, wrapping
// response.ErrValidation with the reason when it may not.
func validate(d Draft, existing []models.Booking) error {
	const op = "draft.validate"

	c := d.candidate()
	if c.Duration() < interval.MinDuration {
		return fmt.Errorf("%s: %w: duration %d is shorter than %d minutes", op, response.ErrValidation, c.Duration(), interval.MinDuration)
	}
	if hits := conflict.Conflicts(c, existing); len(hits) > 0 {
		return fmt.Errorf("%s: %w: overlaps %s", op, response.ErrValidation, interval.Span{Start: hits[0].Start, End: hits[0].End})
	}

	return nil
}
