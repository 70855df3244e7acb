package fakeclinic

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	json "github.com/goccy/go-json"

	"github.com/harborview-health/clinic-scheduling/internal/schedapi"
	"github.com/harborview-health/clinic-scheduling/internal/timeslot"
	"github.com/harborview-health/clinic-scheduling/pkg/logging"
)

// Handler serves the fake backend REST API.
type Handler struct {
	store  *memoryStore
	logger *logging.Logger
}

// NewHandler creates a handler backed by a freshly seeded in-memory clinic.
func NewHandler(logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		store:  newMemoryStore(),
		logger: logger.Component("fakeclinic"),
	}
}

// Routes mounts the API surface the scheduling client consumes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Clinic-Id"},
	}))
	r.Use(httprate.LimitByIP(100, time.Second))

	r.Get("/health", h.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/practitioners/{practitionerID}/slots", h.handleSlots)
		r.Post("/practitioners/{practitionerID}/slots/batch", h.handleBatchSlots)
		r.Post("/appointments", h.handleCreateAppointment)
		r.Post("/calendar", h.handleCalendar)
		r.Post("/resources/availability", h.handleResourceAvailability)
		r.Get("/patients/{patientID}/appointments", h.handlePatientAppointments)
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleSlots(w http.ResponseWriter, r *http.Request) {
	practitionerID := pathID(r, "practitionerID")
	typeID, _ := strconv.ParseInt(r.URL.Query().Get("appointment_type_id"), 10, 64)
	excludeEventID, _ := strconv.ParseInt(r.URL.Query().Get("exclude_event_id"), 10, 64)
	date := r.URL.Query().Get("date")
	if practitionerID == 0 || typeID == 0 || date == "" {
		writeError(w, http.StatusBadRequest, "practitioner, appointment type and date are required")
		return
	}

	slots, err := h.store.availableSlots(practitionerID, typeID, date, excludeEventID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schedapi.SlotsResponse{AvailableSlots: slots})
}

func (h *Handler) handleBatchSlots(w http.ResponseWriter, r *http.Request) {
	practitionerID := pathID(r, "practitionerID")
	var req schedapi.BatchSlotsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if len(req.Dates) == 0 {
		writeError(w, http.StatusBadRequest, "at least one date is required")
		return
	}

	resp := schedapi.BatchSlotsResponse{Results: make([]schedapi.BatchSlotsItem, 0, len(req.Dates))}
	for _, date := range req.Dates {
		slots, err := h.store.availableSlots(practitionerID, req.AppointmentTypeID, date, req.ExcludeEventID)
		if err != nil {
			h.writeStoreError(w, err)
			return
		}
		resp.Results = append(resp.Results, schedapi.BatchSlotsItem{Date: date, AvailableSlots: slots})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req schedapi.CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	start, err := time.Parse("2006-01-02T15:04:05", req.StartDateTime)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "start_datetime must be YYYY-MM-DDTHH:MM:SS")
		return
	}

	appt, err := h.store.book(
		req.PractitionerID,
		req.AppointmentTypeID,
		req.PatientID,
		start.Format("2006-01-02"),
		start.Format("15:04"),
		req.SelectedResourceIDs,
		req.ClinicNotes,
	)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.logger.Info("appointment created",
		"appointment_id", appt.id,
		"practitioner_id", appt.practitionerID,
		"date", appt.date,
		"start_time", appt.startTime)
	writeJSON(w, http.StatusCreated, schedapi.CreateAppointmentResponse{Appointment: toAPIAppointment(appt)})
}

func (h *Handler) handleCalendar(w http.ResponseWriter, r *http.Request) {
	var req schedapi.CalendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	dates, err := datesBetween(req.DateStart, req.DateEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date_start and date_end must be YYYY-MM-DD")
		return
	}

	var resp schedapi.CalendarResponse
	for _, date := range dates {
		for _, id := range req.PractitionerIDs {
			events, schedule := h.store.calendarDay(id, date)
			resp.Results = append(resp.Results, toCalendarResult(id, date, events, schedule))
		}
		for _, id := range req.ResourceIDs {
			events, schedule := h.store.resourceDay(id, date)
			resp.Results = append(resp.Results, toCalendarResult(id, date, events, schedule))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleResourceAvailability(w http.ResponseWriter, r *http.Request) {
	var req schedapi.ResourceAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	free, total := h.store.freeResources(req.Date, req.StartTime, req.EndTime, req.ExcludeEventID)

	resp := schedapi.ResourceAvailabilityResponse{
		AvailableResources: make([]schedapi.Resource, 0, len(free)),
		TotalCount:         total,
		AvailableCount:     len(free),
	}
	for _, res := range free {
		resp.AvailableResources = append(resp.AvailableResources, schedapi.Resource{ID: res.id, Name: res.name})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePatientAppointments(w http.ResponseWriter, r *http.Request) {
	patientID := pathID(r, "patientID")
	appts, err := h.store.patientAppointments(patientID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	resp := schedapi.PatientAppointmentsResponse{Appointments: make([]schedapi.Appointment, 0, len(appts))}
	for _, appt := range appts {
		resp.Appointments = append(resp.Appointments, toAPIAppointment(appt))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errUnknownPairing), errors.Is(err, errUnknownPatient):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errSlotTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, errSlotOffGrid):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("unexpected store error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func toAPIAppointment(appt appointment) schedapi.Appointment {
	return schedapi.Appointment{
		ID:                appt.id,
		PractitionerID:    appt.practitionerID,
		AppointmentTypeID: appt.appointmentTypeID,
		PatientID:         appt.patientID,
		Date:              appt.date,
		StartTime:         appt.startTime,
		EndTime:           appt.endTime,
		Status:            "booked",
	}
}

func toCalendarResult(subjectID int64, date string, events []appointment, schedule []timeslot.Interval) schedapi.CalendarResult {
	result := schedapi.CalendarResult{
		SubjectID:       subjectID,
		Date:            date,
		Events:          make([]schedapi.CalendarEvent, 0, len(events)),
		DefaultSchedule: schedule,
	}
	for _, appt := range events {
		result.Events = append(result.Events, schedapi.CalendarEvent{
			ID:                appt.id,
			PatientID:         appt.patientID,
			AppointmentTypeID: appt.appointmentTypeID,
			StartTime:         appt.startTime,
			EndTime:           appt.endTime,
			Status:            "booked",
		})
	}
	return result
}

func datesBetween(start, end string) ([]string, error) {
	from, err := time.Parse("2006-01-02", start)
	if err != nil {
		return nil, err
	}
	to, err := time.Parse("2006-01-02", end)
	if err != nil {
		return nil, err
	}
	var dates []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format("2006-01-02"))
	}
	return dates, nil
}

func pathID(r *http.Request, param string) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
