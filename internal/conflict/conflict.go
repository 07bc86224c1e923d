// Package conflict decides whether a candidate booking fits among the
// bookings already known for its date and room. The checks here are
// advisory: the storage tier holds the authoritative exclusion constraint.
package conflict

import (
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"booking-service/internal/interval"
	"booking-service/internal/models"
	"booking-service/pkg/response"
)

const MaxNoteLength = 500

// IsValid reports whether candidate is long enough and overlaps no booking
// sharing its date and room. A booking with the candidate's own ID is skipped
// so that an existing row can be re-validated while it is being edited.
func IsValid(candidate models.Booking, existing []models.Booking) bool {
	if candidate.Duration() < interval.MinDuration {
		return false
	}
	return len(Conflicts(candidate, existing)) == 0
}

// Conflicts returns the bookings in existing that overlap candidate in the same scope.
func Conflicts(candidate models.Booking, existing []models.Booking) []models.Booking {
	var out []models.Booking
	for _, b := range existing {
		if !b.SameScope(candidate) {
			continue
		}
		if candidate.ID != "" && b.ID == candidate.ID {
			continue
		}
		if interval.Overlaps(candidate.Start, candidate.End, b.Start, b.End) {
			out = append(out, b)
		}
	}
	return out
}

// CheckInvariants validates the row-level rules every persisted booking obeys.
// Overlap with other rows is not checked here.
func CheckInvariants(b models.Booking) error {
	const op = "conflict.CheckInvariants"

	fail := func(format string, args ...any) error {
		return fmt.Errorf("%s: %w: %s", op, response.ErrValidation, fmt.Sprintf(format, args...))
	}

	if _, err := time.Parse(models.DateLayout, b.Date); err != nil {
		return fail("date %q is not YYYY-MM-DD", b.Date)
	}
	if b.Room == "" {
		return fail("room is required")
	}
	if b.Teacher == "" {
		return fail("teacher is required")
	}
	if b.Type == "" {
		return fail("type is required")
	}
	if b.Start >= b.End {
		return fail("start %d must be before end %d", b.Start, b.End)
	}
	if b.Duration() < interval.MinDuration {
		return fail("duration %d is shorter than %d minutes", b.Duration(), interval.MinDuration)
	}
	if b.Start < interval.StartMin || b.End > interval.EndMin {
		return fail("interval %s is outside the day grid", interval.Span{Start: b.Start, End: b.End})
	}
	if utf8.RuneCountInString(b.Note) > MaxNoteLength {
		return fail("note exceeds %d characters", MaxNoteLength)
	}

	return nil
}

// FreeGaps returns the unbooked intervals of the day grid for one date and room,
// in ascending order.
func FreeGaps(existing []models.Booking, date, room string) []interval.Span {
	var taken []interval.Span
	for _, b := range existing {
		if b.Date == date && b.Room == room {
			taken = append(taken, interval.Span{Start: b.Start, End: b.End})
		}
	}
	sort.Slice(taken, func(i, j int) bool {
		return taken[i].Start < taken[j].Start
	})

	gaps := make([]interval.Span, 0, len(taken)+1)
	cursor := interval.StartMin
	for _, t := range taken {
		if t.Start > cursor {
			gaps = append(gaps, interval.Span{Start: cursor, End: min(t.Start, interval.EndMin)})
		}
		if t.End > cursor {
			cursor = t.End
		}
		if cursor >= interval.EndMin {
			break
		}
	}
	if cursor < interval.EndMin {
		gaps = append(gaps, interval.Span{Start: cursor, End: interval.EndMin})
	}

	return gaps
}
