package calendarview

import "time"

// View selects how wide a calendar window is.
type View string

const (
	ViewDay   View = "day"
	ViewWeek  View = "week"
	ViewMonth View = "month"
)

const dateLayout = "2006-01-02"

// Window is an inclusive date range in the clinic's zone.
type Window struct {
	Start string
	End   string
}

// WindowFor derives the calendar-aligned window containing current for the
// given view. Weeks start on Monday. The derivation is deterministic: equal
// (current, view) pairs in the same zone always produce the same window.
func WindowFor(current time.Time, view View, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	t := current.In(loc)

	switch view {
	case ViewWeek:
		offset := (int(t.Weekday()) + 6) % 7
		start := t.AddDate(0, 0, -offset)
		end := start.AddDate(0, 0, 6)
		return Window{Start: start.Format(dateLayout), End: end.Format(dateLayout)}
	case ViewMonth:
		first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
		last := first.AddDate(0, 1, -1)
		return Window{Start: first.Format(dateLayout), End: last.Format(dateLayout)}
	default:
		d := t.Format(dateLayout)
		return Window{Start: d, End: d}
	}
}
