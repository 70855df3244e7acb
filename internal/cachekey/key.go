// Package cachekey defines the composite keys addressing cached scheduling
// views. Keys carry an explicit family tag plus structured fields, so the
// invalidation engine matches them structurally instead of parsing opaque
// strings. ID lists are normalized (sorted, deduplicated) so argument order
// never changes the key.
package cachekey

import (
	"sort"
	"strconv"
	"strings"
)

// Family discriminates the kind of cached view a key addresses.
type Family string

const (
	FamilySlots                Family = "slots"
	FamilyBatchSlots           Family = "batch-slots"
	FamilyResourceAvailability Family = "resource-availability"
	FamilyCalendar             Family = "calendar"
	FamilyPatientAppointments  Family = "patient-appointments"
)

// Key addresses one cached view. Zero-valued fields mean "not part of this
// family's dimensions". ExcludeEventID zero means the canonical, unfiltered
// view.
type Key struct {
	Family            Family
	ClinicID          int64
	PractitionerIDs   []int64
	ResourceIDs       []int64
	AppointmentTypeID int64
	Date              string
	Dates             []string
	DateStart         string
	DateEnd           string
	StartTime         string
	EndTime           string
	ExcludeEventID    int64
	PatientID         int64
}

// Slots addresses the single-date slot list for one practitioner.
func Slots(clinicID, practitionerID, appointmentTypeID int64, date string, excludeEventID int64) Key {
	return Key{
		Family:            FamilySlots,
		ClinicID:          clinicID,
		PractitionerIDs:   []int64{practitionerID},
		AppointmentTypeID: appointmentTypeID,
		Date:              date,
		ExcludeEventID:    excludeEventID,
	}
}

// BatchSlots addresses a multi-date slot query for one practitioner.
func BatchSlots(clinicID, practitionerID, appointmentTypeID int64, dates []string, excludeEventID int64) Key {
	return Key{
		Family:            FamilyBatchSlots,
		ClinicID:          clinicID,
		PractitionerIDs:   []int64{practitionerID},
		AppointmentTypeID: appointmentTypeID,
		Dates:             normalizeDates(dates),
		ExcludeEventID:    excludeEventID,
	}
}

// ResourceAvailability addresses a resource lookup for a concrete start/end
// window on one date.
func ResourceAvailability(clinicID, practitionerID, appointmentTypeID int64, date, startTime, endTime string, excludeEventID int64) Key {
	return Key{
		Family:            FamilyResourceAvailability,
		ClinicID:          clinicID,
		PractitionerIDs:   []int64{practitionerID},
		AppointmentTypeID: appointmentTypeID,
		Date:              date,
		StartTime:         startTime,
		EndTime:           endTime,
		ExcludeEventID:    excludeEventID,
	}
}

// Calendar addresses the merged calendar view for a set of practitioners and
// resources over a date window.
func Calendar(clinicID int64, practitionerIDs, resourceIDs []int64, dateStart, dateEnd string) Key {
	return Key{
		Family:          FamilyCalendar,
		ClinicID:        clinicID,
		PractitionerIDs: normalizeIDs(practitionerIDs),
		ResourceIDs:     normalizeIDs(resourceIDs),
		DateStart:       dateStart,
		DateEnd:         dateEnd,
	}
}

// PatientAppointments addresses one patient's appointment list.
func PatientAppointments(clinicID, patientID int64) Key {
	return Key{
		Family:    FamilyPatientAppointments,
		ClinicID:  clinicID,
		PatientID: patientID,
	}
}

// String returns the canonical encoding used as the store's map key. Two keys
// built from equal (order-insensitive) arguments always encode identically.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(string(k.Family))
	b.WriteString("|c=")
	b.WriteString(strconv.FormatInt(k.ClinicID, 10))
	b.WriteString("|p=")
	writeIDs(&b, k.PractitionerIDs)
	b.WriteString("|r=")
	writeIDs(&b, k.ResourceIDs)
	b.WriteString("|t=")
	b.WriteString(strconv.FormatInt(k.AppointmentTypeID, 10))
	b.WriteString("|d=")
	b.WriteString(k.Date)
	b.WriteString("|ds=")
	b.WriteString(strings.Join(k.Dates, ","))
	b.WriteString("|w=")
	b.WriteString(k.DateStart)
	b.WriteString("..")
	b.WriteString(k.DateEnd)
	b.WriteString("|h=")
	b.WriteString(k.StartTime)
	b.WriteString("-")
	b.WriteString(k.EndTime)
	b.WriteString("|x=")
	b.WriteString(strconv.FormatInt(k.ExcludeEventID, 10))
	b.WriteString("|pt=")
	b.WriteString(strconv.FormatInt(k.PatientID, 10))
	return b.String()
}

// Canonical returns a copy of the key with the exclusion dimension cleared.
// Optimistic writes target the canonical, unfiltered view.
func (k Key) Canonical() Key {
	k.ExcludeEventID = 0
	return k
}

func writeIDs(b *strings.Builder, ids []int64) {
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
}

func normalizeIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	out := make([]int64, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	dedup := out[:1]
	for _, id := range out[1:] {
		if id != dedup[len(dedup)-1] {
			dedup = append(dedup, id)
		}
	}
	return dedup
}

func normalizeDates(dates []string) []string {
	if len(dates) == 0 {
		return nil
	}
	out := make([]string, len(dates))
	copy(out, dates)
	sort.Strings(out)
	dedup := out[:1]
	for _, d := range out[1:] {
		if d != dedup[len(dedup)-1] {
			dedup = append(dedup, d)
		}
	}
	return dedup
}
