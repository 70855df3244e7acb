// Package timeslot holds the wall-clock interval value type shared by the
// availability, calendar and booking layers. All times are HH:MM strings in
// the clinic's single fixed time zone; intervals are half-open.
package timeslot

// Interval is a half-open [StartTime, EndTime) wall-clock range.
type Interval struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Valid reports whether both endpoints are well-formed HH:MM strings and the
// interval is non-empty.
func (i Interval) Valid() bool {
	return ValidClock(i.StartTime) && ValidClock(i.EndTime) && i.StartTime < i.EndTime
}

// Overlaps reports whether a and b intersect under half-open semantics:
// touching endpoints do not overlap.
func Overlaps(a, b Interval) bool {
	return a.StartTime < b.EndTime && b.StartTime < a.EndTime
}

// RemoveByStart returns a new slice with the first interval whose StartTime
// equals start removed. The input is never modified; if no interval matches,
// the result is an equal copy.
func RemoveByStart(slots []Interval, start string) []Interval {
	out := make([]Interval, 0, len(slots))
	removed := false
	for _, s := range slots {
		if !removed && s.StartTime == start {
			removed = true
			continue
		}
		out = append(out, s)
	}
	return out
}

// ValidClock reports whether s is a zero-padded 24h HH:MM string.
func ValidClock(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	h := digits2(s[0], s[1])
	m := digits2(s[3], s[4])
	return h >= 0 && h < 24 && m >= 0 && m < 60
}

func digits2(a, b byte) int {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return -1
	}
	return int(a-'0')*10 + int(b-'0')
}
