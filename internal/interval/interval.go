// Package interval holds the minute-of-day arithmetic shared by the editor,
// the conflict detector and the storage layer. All intervals are half-open.
package interval

import (
	"fmt"
	"math"
	"time"
)

const (
	StartMin        = 7 * 60  // 07:00
	EndMin          = 24 * 60 // 24:00
	Step            = 10
	MinDuration     = 15
	DefaultDuration = 60
)

// SnapToStep rounds m to the nearest multiple of step, halves rounding up.
func SnapToStep(m, step int) int {
	if step <= 0 {
		return m
	}
	return floorDiv(m+step/2, step) * step
}

func Snap(m int) int {
	return SnapToStep(m, Step)
}

// SnapFloat applies the SnapToStep rule to a fractional minute value.
func SnapFloat(m float64, step int) int {
	if step <= 0 {
		return int(math.Round(m))
	}
	return int(math.Floor(m/float64(step)+0.5)) * step
}

// Clamp bounds v to [lo, hi]. Callers must keep lo <= hi; if they do not,
// hi wins.
func Clamp(v, lo, hi int) int {
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return v
}

// Overlaps is the half-open intersection test: touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && aEnd > bStart
}

type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (s Span) Duration() int {
	return s.End - s.Start
}

func (s Span) Overlaps(o Span) bool {
	return Overlaps(s.Start, s.End, o.Start, o.End)
}

func (s Span) String() string {
	return fmt.Sprintf("[%s, %s)", FormatMinutes(s.Start), FormatMinutes(s.End))
}

// FormatMinutes renders minutes since midnight as HH:MM. 1440 renders as 24:00.
func FormatMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// ParseClock parses "HH:MM" into minutes since midnight. "24:00" is accepted
// as the end of the day.
func ParseClock(s string) (int, error) {
	if s == "24:00" {
		return EndMin, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
