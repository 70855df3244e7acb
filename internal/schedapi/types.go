package schedapi

import "github.com/harborview-health/clinic-scheduling/internal/timeslot"

// SlotsRequest selects a single-date slot lookup.
type SlotsRequest struct {
	PractitionerID    int64
	AppointmentTypeID int64
	Date              string
	ExcludeEventID    int64
}

// SlotsResponse is the server's slot list for one practitioner and date.
type SlotsResponse struct {
	AvailableSlots []timeslot.Interval `json:"available_slots"`
}

// BatchSlotsRequest selects slot lookups for several dates in one call.
type BatchSlotsRequest struct {
	PractitionerID    int64    `json:"practitioner_id"`
	AppointmentTypeID int64    `json:"appointment_type_id"`
	Dates             []string `json:"dates"`
	ExcludeEventID    int64    `json:"exclude_event_id,omitempty"`
}

// BatchSlotsItem is one date's slot list inside a batch response.
type BatchSlotsItem struct {
	Date           string              `json:"date"`
	AvailableSlots []timeslot.Interval `json:"available_slots"`
}

type BatchSlotsResponse struct {
	Results []BatchSlotsItem `json:"results"`
}

// CreateAppointmentRequest is the booking mutation payload. Immutable once
// submitted.
type CreateAppointmentRequest struct {
	PractitionerID      int64   `json:"practitioner_id" validate:"required"`
	AppointmentTypeID   int64   `json:"appointment_type_id" validate:"required"`
	StartDateTime       string  `json:"start_datetime" validate:"required"`
	PatientID           int64   `json:"patient_id" validate:"required"`
	SelectedResourceIDs []int64 `json:"selected_resource_ids"`
	ClinicNotes         string  `json:"clinic_notes,omitempty"`
}

// Appointment is the persisted appointment returned by the backend.
type Appointment struct {
	ID                int64  `json:"id"`
	PractitionerID    int64  `json:"practitioner_id"`
	AppointmentTypeID int64  `json:"appointment_type_id"`
	PatientID         int64  `json:"patient_id"`
	Date              string `json:"date"`
	StartTime         string `json:"start_time"`
	EndTime           string `json:"end_time"`
	Status            string `json:"status"`
}

type CreateAppointmentResponse struct {
	Appointment Appointment `json:"appointment"`
}

// CalendarRequest fetches events and default schedules for one subject kind.
// Exactly one of PractitionerIDs or ResourceIDs is set per call.
type CalendarRequest struct {
	PractitionerIDs []int64 `json:"practitioner_ids,omitempty"`
	ResourceIDs     []int64 `json:"resource_ids,omitempty"`
	DateStart       string  `json:"date_start"`
	DateEnd         string  `json:"date_end"`
}

// CalendarEvent is a scheduled occupancy on a subject's calendar.
type CalendarEvent struct {
	ID                int64  `json:"id"`
	PatientID         int64  `json:"patient_id,omitempty"`
	AppointmentTypeID int64  `json:"appointment_type_id,omitempty"`
	StartTime         string `json:"start_time"`
	EndTime           string `json:"end_time"`
	Status            string `json:"status,omitempty"`
}

// CalendarResult is one subject-day on the calendar, with the subject's
// default working schedule for that day.
type CalendarResult struct {
	SubjectID       int64               `json:"subject_id"`
	Date            string              `json:"date"`
	Events          []CalendarEvent     `json:"events"`
	DefaultSchedule []timeslot.Interval `json:"default_schedule"`
}

type CalendarResponse struct {
	Results []CalendarResult `json:"results"`
}

// ResourceAvailabilityRequest asks which resources are free for a concrete
// start/end window.
type ResourceAvailabilityRequest struct {
	AppointmentTypeID int64  `json:"appointment_type_id"`
	PractitionerID    int64  `json:"practitioner_id"`
	Date              string `json:"date"`
	StartTime         string `json:"start_time"`
	EndTime           string `json:"end_time"`
	ExcludeEventID    int64  `json:"exclude_event_id,omitempty"`
}

type Resource struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type ResourceAvailabilityResponse struct {
	AvailableResources []Resource `json:"available_resources"`
	TotalCount         int        `json:"total_count"`
	AvailableCount     int        `json:"available_count"`
}

type PatientAppointmentsResponse struct {
	Appointments []Appointment `json:"appointments"`
}
