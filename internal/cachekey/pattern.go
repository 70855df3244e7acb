package cachekey

// Pattern selects a family of keys by structural match. Nil fields match any
// value. Patterns deliberately cannot constrain ExcludeEventID: an invalidation
// always spans every exclusion-scoped variant of a view, because those variants
// share the same underlying availability.
type Pattern struct {
	Family            Family
	ClinicID          *int64
	PractitionerID    *int64
	AppointmentTypeID *int64
	Date              *string
	PatientID         *int64
}

// Matches reports whether k belongs to the family of keys selected by p.
// A date constraint matches single-date keys exactly, multi-date keys by
// membership, and windowed keys when the date falls inside the window.
func (p Pattern) Matches(k Key) bool {
	if p.Family != "" && p.Family != k.Family {
		return false
	}
	if p.ClinicID != nil && *p.ClinicID != k.ClinicID {
		return false
	}
	if p.PractitionerID != nil && !containsID(k.PractitionerIDs, *p.PractitionerID) {
		return false
	}
	if p.AppointmentTypeID != nil && *p.AppointmentTypeID != k.AppointmentTypeID {
		return false
	}
	if p.PatientID != nil && *p.PatientID != k.PatientID {
		return false
	}
	if p.Date != nil && !matchesDate(k, *p.Date) {
		return false
	}
	return true
}

// ID returns a pointer for use in Pattern fields.
func ID(v int64) *int64 { return &v }

// Day returns a pointer for use in Pattern date fields.
func Day(s string) *string { return &s }

func containsID(ids []int64, v int64) bool {
	for _, id := range ids {
		if id == v {
			return true
		}
	}
	return false
}

func matchesDate(k Key, date string) bool {
	if k.Date != "" {
		return k.Date == date
	}
	if len(k.Dates) > 0 {
		for _, d := range k.Dates {
			if d == date {
				return true
			}
		}
		return false
	}
	if k.DateStart != "" || k.DateEnd != "" {
		return k.DateStart <= date && date <= k.DateEnd
	}
	return false
}
