package domain

import (
	"strings"
	"time"
)

// DateLayout is the ISO 8601 calendar date used on every wire and in keys.
const DateLayout = "2006-01-02"

// ParseDate parses an ISO calendar date into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, Validationf("date", "date is required")
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, Validationf("date", "date %q is not YYYY-MM-DD", s)
	}
	return t, nil
}

// ParseDateList parses a comma separated list, rejecting empty items.
func ParseDateList(s string) ([]time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, Validationf("dates", "at least one date is required")
	}
	parts := strings.Split(s, ",")
	out := make([]time.Time, 0, len(parts))
	for _, p := range parts {
		d, err := ParseDate(p)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateWindow is an inclusive range of calendar dates.
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// NewDateWindow builds a window and rejects start after end.
func NewDateWindow(start, end time.Time) (DateWindow, error) {
	w := DateWindow{Start: Day(start), End: Day(end)}
	if w.Start.After(w.End) {
		return DateWindow{}, Rangef("date window", "start %s is after end %s",
			w.Start.Format(DateLayout), w.End.Format(DateLayout))
	}
	return w, nil
}

// SingleDay is the window [d, d].
func SingleDay(d time.Time) DateWindow {
	d = Day(d)
	return DateWindow{Start: d, End: d}
}

// Contains reports whether d's calendar date lies in the window.
func (w DateWindow) Contains(d time.Time) bool {
	d = Day(d)
	return !d.Before(w.Start) && !d.After(w.End)
}

// ContainsKey is Contains for an already formatted YYYY-MM-DD key.
// Lexicographic order equals chronological order for this layout.
func (w DateWindow) ContainsKey(key string) bool {
	return key >= w.Start.Format(DateLayout) && key <= w.End.Format(DateLayout)
}

// Within reports whether the whole of w lies inside outer.
func (w DateWindow) Within(outer DateWindow) bool {
	return outer.Contains(w.Start) && outer.Contains(w.End)
}

func (w DateWindow) String() string {
	return w.Start.Format(DateLayout) + ".." + w.End.Format(DateLayout)
}
