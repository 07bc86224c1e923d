package models

import "time"

// DateLayout is the calendar-day key format used for Booking.Date.
const DateLayout = "2006-01-02"

type Booking struct {
	ID      string `json:"id" db:"id"`
	Date    string `json:"date" db:"date"`
	Room    string `json:"room" db:"room"`
	Start   int    `json:"start" db:"start_min"`
	End     int    `json:"end" db:"end_min"`
	Teacher string `json:"teacher" db:"teacher"`
	Type    string `json:"type" db:"type"`
	Note    string `json:"note,omitempty" db:"note"`
}

// SameScope reports whether b and other compete for the same room on the same day.
func (b Booking) SameScope(other Booking) bool {
	return b.Date == other.Date && b.Room == other.Room
}

func (b Booking) Duration() int {
	return b.End - b.Start
}

type ChangeKind string

const (
	ChangeInserted ChangeKind = "inserted"
	ChangeUpdated  ChangeKind = "updated"
	ChangeDeleted  ChangeKind = "deleted"
	// ChangeResync carries no booking. It is emitted when notifications may
	// have been lost and consumers must reload.
	ChangeResync ChangeKind = "resync"
)

type Change struct {
	Kind    ChangeKind `json:"kind"`
	Booking Booking    `json:"booking"`
	At      time.Time  `json:"at,omitzero"`
}
