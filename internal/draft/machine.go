package draft

import (
	"fmt"
	"math"

	"booking-service/internal/interval"
	"booking-service/internal/models"
)

type State string

const (
	StateIdle        State = "idle"
	StateDraftActive State = "draft_active"
)

type Mode string

const (
	ModeMove        Mode = "move"
	ModeResizeStart Mode = "resize_start"
	ModeResizeEnd   Mode = "resize_end"
)

// Target is the element under the pointer.
type Target string

const (
	TargetSurface      Target = "surface"
	TargetDetailPanel  Target = "detail_panel"
	TargetBody         Target = "draft_body"
	TargetTopHandle    Target = "draft_top_handle"
	TargetBottomHandle Target = "draft_bottom_handle"
)

// Grid maps pointer coordinates to minutes. Y is measured from the top of
// the day grid, which sits at interval.StartMin.
type Grid struct {
	PixelsPerMinute float64 `json:"pixels_per_minute"`
	TapSlop         float64 `json:"tap_slop"`
}

var DefaultGrid = Grid{PixelsPerMinute: 1, TapSlop: 6}

func (g Grid) ppm() float64 {
	if g.PixelsPerMinute <= 0 {
		return 1
	}
	return g.PixelsPerMinute
}

// Tap tracks a pointer pressed on the empty surface that may become a draft.
type Tap struct {
	PointerID int     `json:"pointer_id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Moved     bool    `json:"moved"`
}

// Gesture is a captured move or resize of the active draft.
type Gesture struct {
	PointerID int     `json:"pointer_id"`
	Mode      Mode    `json:"mode"`
	OrigStart int     `json:"orig_start"`
	OrigEnd   int     `json:"orig_end"`
	OriginY   float64 `json:"origin_y"`
}

type Machine struct {
	Grid    Grid     `json:"grid"`
	Date    string   `json:"date"`
	Room    string   `json:"room"`
	State   State    `json:"state"`
	Draft   *Draft   `json:"draft,omitempty"`
	Valid   bool     `json:"valid"`
	Tap     *Tap     `json:"tap,omitempty"`
	Gesture *Gesture `json:"gesture,omitempty"`
}

func New(grid Grid, date, room string) Machine {
	return Machine{
		Grid:  grid,
		Date:  date,
		Room:  room,
		State: StateIdle,
	}
}

type Event interface {
	event()
}

// SelectScope switches the day and room being edited. Any draft is discarded.
type SelectScope struct {
	Date string
	Room string
}

type PointerDown struct {
	PointerID int
	X, Y      float64
	Target    Target
}

type PointerMove struct {
	PointerID int
	X, Y      float64
}

type PointerUp struct {
	PointerID int
	X, Y      float64
	Target    Target
}

type SetDetails struct {
	Teacher string
	Type    string
	Note    string
}

type Cancel struct{}

func (SelectScope) event() {}
func (PointerDown) event() {}
func (PointerMove) event() {}
func (PointerUp) event()   {}
func (SetDetails) event()  {}
func (Cancel) event()      {}

// Apply returns the state that follows ev. existing holds the bookings used
// to re-validate the draft after every change to it.
func (m Machine) Apply(ev Event, existing []models.Booking) Machine {
	m = m.normalize()

	switch e := ev.(type) {
	case SelectScope:
		return New(m.Grid, e.Date, e.Room)
	case Cancel:
		return New(m.Grid, m.Date, m.Room)
	case SetDetails:
		if m.Draft == nil {
			return m
		}
		d := *m.Draft
		d.Teacher, d.Type, d.Note = e.Teacher, e.Type, e.Note
		return m.withDraft(d, existing)
	case PointerDown:
		return m.pointerDown(e)
	case PointerMove:
		return m.pointerMove(e, existing)
	case PointerUp:
		return m.pointerUp(e, existing)
	}
	return m
}

// normalize makes State agree with Draft. A decoded Machine may carry one
// without the other; the draft wins when present.
func (m Machine) normalize() Machine {
	switch {
	case m.Draft == nil && m.State != StateIdle:
		m.State = StateIdle
		m.Valid = false
		m.Gesture = nil
	case m.Draft != nil && m.State != StateDraftActive:
		m.State = StateDraftActive
	}
	return m
}

func (m Machine) pointerDown(e PointerDown) Machine {
	if m.Gesture != nil || m.Tap != nil {
		return m
	}

	switch m.State {
	case StateIdle:
		if e.Target != TargetSurface || m.Date == "" || m.Room == "" {
			return m
		}
		m.Tap = &Tap{PointerID: e.PointerID, X: e.X, Y: e.Y}
	case StateDraftActive:
		var mode Mode
		switch e.Target {
		case TargetBody:
			mode = ModeMove
		case TargetTopHandle:
			mode = ModeResizeStart
		case TargetBottomHandle:
			mode = ModeResizeEnd
		default:
			return m
		}
		m.Gesture = &Gesture{
			PointerID: e.PointerID,
			Mode:      mode,
			OrigStart: m.Draft.Start,
			OrigEnd:   m.Draft.End,
			OriginY:   e.Y,
		}
	}

	return m
}

func (m Machine) pointerMove(e PointerMove, existing []models.Booking) Machine {
	if t := m.Tap; t != nil && t.PointerID == e.PointerID {
		if t.Moved {
			return m
		}
		if math.Abs(e.X-t.X) > m.Grid.TapSlop || math.Abs(e.Y-t.Y) > m.Grid.TapSlop {
			moved := *t
			moved.Moved = true
			m.Tap = &moved
		}
		return m
	}

	g := m.Gesture
	if g == nil || g.PointerID != e.PointerID || m.Draft == nil {
		return m
	}

	delta := int(math.Round((e.Y - g.OriginY) / m.Grid.ppm()))
	d := *m.Draft

	switch g.Mode {
	case ModeMove:
		dur := max(g.OrigEnd-g.OrigStart, interval.MinDuration)
		d.Start = interval.Clamp(interval.Snap(g.OrigStart+delta), interval.StartMin, interval.EndMin-dur)
		d.End = d.Start + dur
	case ModeResizeStart:
		d.Start = interval.Clamp(interval.Snap(g.OrigStart+delta), interval.StartMin, g.OrigEnd-interval.MinDuration)
	case ModeResizeEnd:
		d.End = interval.Clamp(interval.Snap(g.OrigEnd+delta), g.OrigStart+interval.MinDuration, interval.EndMin)
	}

	return m.withDraft(d, existing)
}

func (m Machine) pointerUp(e PointerUp, existing []models.Booking) Machine {
	if t := m.Tap; t != nil && t.PointerID == e.PointerID {
		m.Tap = nil
		if t.Moved || e.Target == TargetDetailPanel || m.State != StateIdle {
			return m
		}

		minute := float64(interval.StartMin) + e.Y/m.Grid.ppm()
		start := interval.Clamp(interval.SnapFloat(minute, interval.Step), interval.StartMin, interval.EndMin-interval.MinDuration)
		end := interval.Clamp(start+interval.DefaultDuration, start+interval.MinDuration, interval.EndMin)

		return m.withDraft(Draft{Date: m.Date, Room: m.Room, Start: start, End: end}, existing)
	}

	if g := m.Gesture; g != nil && g.PointerID == e.PointerID {
		m.Gesture = nil
	}

	return m
}

func (m Machine) withDraft(d Draft, existing []models.Booking) Machine {
	m.State = StateDraftActive
	m.Draft = &d
	m.Valid = validate(d, existing) == nil
	return m
}

// Revalidate re-runs the conflict check after the known bookings changed.
func (m Machine) Revalidate(existing []models.Booking) Machine {
	if m.Draft == nil {
		return m
	}
	return m.withDraft(*m.Draft, existing)
}

// CanSave reports whether Save would succeed against the last validated set.
func (m Machine) CanSave() bool {
	return m.Draft != nil && m.Valid && m.Gesture == nil &&
		m.Draft.Teacher != "" && m.Draft.Type != ""
}

// Save converts the draft into the booking to submit and returns the machine
// to idle. On error the draft stays active.
func (m Machine) Save(existing []models.Booking, newID func() string) (Machine, models.Booking, error) {
	const op = "draft.Machine.Save"

	if m.Draft == nil {
		return m, models.Booking{}, fmt.Errorf("%s: %w", op, ErrNoDraft)
	}
	if m.Gesture != nil {
		return m, models.Booking{}, fmt.Errorf("%s: %w", op, ErrGestureActive)
	}
	if err := validate(*m.Draft, existing); err != nil {
		m.Valid = false
		return m, models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	ready, err := m.Draft.Ready()
	if err != nil {
		return m, models.Booking{}, fmt.Errorf("%s: %w", op, err)
	}

	id := m.Draft.ID
	if id == "" {
		id = newID()
	}

	return New(m.Grid, m.Date, m.Room), ready.Booking(id), nil
}

// Restore re-enters editing with d, typically after the server rejected it.
// Any gesture or pending tap is dropped.
func (m Machine) Restore(d Draft, existing []models.Booking) Machine {
	m.Tap = nil
	m.Gesture = nil
	m.Date, m.Room = d.Date, d.Room
	return m.withDraft(d, existing)
}
