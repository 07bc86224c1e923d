package store

import (
	"sort"

	"booking-service/internal/models"
)

// Set is the reconciled view of bookings. Apply is pure and idempotent:
// feeding it the same changes twice, or a delete before the matching insert,
// converges to the same rows.
type Set struct {
	Rows       map[string]models.Booking `json:"rows"`
	Tombstones map[string]bool           `json:"tombstones,omitempty"`
}

func NewSet(rows ...models.Booking) Set {
	s := Set{Rows: make(map[string]models.Booking, len(rows))}
	for _, b := range rows {
		s.Rows[b.ID] = b
	}
	return s
}

func (s Set) clone() Set {
	out := Set{
		Rows:       make(map[string]models.Booking, len(s.Rows)),
		Tombstones: make(map[string]bool, len(s.Tombstones)),
	}
	for id, b := range s.Rows {
		out.Rows[id] = b
	}
	for id := range s.Tombstones {
		out.Tombstones[id] = true
	}
	return out
}

// Apply returns the set with ch reconciled into it. Deleted ids are
// tombstoned so a late insert or update for them is ignored.
func (s Set) Apply(ch models.Change) Set {
	id := ch.Booking.ID
	if id == "" {
		return s
	}

	switch ch.Kind {
	case models.ChangeInserted:
		if s.Tombstones[id] {
			return s
		}
		if _, ok := s.Rows[id]; ok {
			return s
		}
		out := s.clone()
		out.Rows[id] = ch.Booking
		return out
	case models.ChangeUpdated:
		if s.Tombstones[id] {
			return s
		}
		out := s.clone()
		out.Rows[id] = ch.Booking
		return out
	case models.ChangeDeleted:
		out := s.clone()
		delete(out.Rows, id)
		out.Tombstones[id] = true
		return out
	}

	return s
}

// Replace swaps the rows for a freshly fetched set, keeping tombstones.
func (s Set) Replace(rows []models.Booking) Set {
	out := Set{
		Rows:       make(map[string]models.Booking, len(rows)),
		Tombstones: make(map[string]bool, len(s.Tombstones)),
	}
	for id := range s.Tombstones {
		out.Tombstones[id] = true
	}
	for _, b := range rows {
		if !out.Tombstones[b.ID] {
			out.Rows[b.ID] = b
		}
	}
	return out
}

func (s Set) Contains(id string) bool {
	_, ok := s.Rows[id]
	return ok
}

// ForDate returns the rows of date ordered by start, then room.
func (s Set) ForDate(date string) []models.Booking {
	out := make([]models.Booking, 0, len(s.Rows))
	for _, b := range s.Rows {
		if b.Date == date {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		if out[i].Room != out[j].Room {
			return out[i].Room < out[j].Room
		}
		return out[i].ID < out[j].ID
	})
	return out
}
