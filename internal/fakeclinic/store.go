// Package fakeclinic is an in-memory fake of the scheduling backend REST
// contract, for development and integration tests. It implements just enough
// of the server's semantics to exercise the client side: a fixed slot grid,
// slot-consuming bookings, conflict detection and per-subject calendars.
package fakeclinic

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/harborview-health/clinic-scheduling/internal/timeslot"
)

var (
	errUnknownPairing = errors.New("fakeclinic: practitioner does not offer appointment type")
	errUnknownPatient = errors.New("fakeclinic: patient not found")
	errSlotTaken      = errors.New("fakeclinic: slot already booked")
	errSlotOffGrid    = errors.New("fakeclinic: start time is not a bookable slot")
)

const (
	dayStart    = "09:00"
	dayEnd      = "17:00"
	slotMinutes = 30
)

type practitioner struct {
	id           int64
	name         string
	offeredTypes map[int64]bool
}

type appointmentType struct {
	id              int64
	name            string
	durationMinutes int
	// resources the type occupies while an appointment runs
	requiredResourceIDs []int64
}

type resource struct {
	id   int64
	name string
}

type appointment struct {
	id                int64
	practitionerID    int64
	appointmentTypeID int64
	patientID         int64
	date              string
	startTime         string
	endTime           string
	resourceIDs       []int64
	notes             string
}

type memoryStore struct {
	mu sync.RWMutex

	practitioners map[int64]practitioner
	types         map[int64]appointmentType
	resources     map[int64]resource
	patients      map[int64]bool

	appointmentsByID map[int64]appointment
	nextAppointment  int64
}

func newMemoryStore() *memoryStore {
	s := &memoryStore{
		practitioners:    make(map[int64]practitioner),
		types:            make(map[int64]appointmentType),
		resources:        make(map[int64]resource),
		patients:         make(map[int64]bool),
		appointmentsByID: make(map[int64]appointment),
		nextAppointment:  1000,
	}
	s.seed()
	return s
}

// seed loads a small deterministic clinic. Tests rely on these ids.
func (s *memoryStore) seed() {
	s.practitioners[5] = practitioner{id: 5, name: "Dr. Aoyama", offeredTypes: map[int64]bool{2: true, 3: true}}
	s.practitioners[6] = practitioner{id: 6, name: "Dr. Sato", offeredTypes: map[int64]bool{2: true}}
	s.practitioners[7] = practitioner{id: 7, name: "Dr. Miller", offeredTypes: map[int64]bool{3: true}}

	s.types[2] = appointmentType{id: 2, name: "Consultation", durationMinutes: 30}
	s.types[3] = appointmentType{id: 3, name: "Treatment", durationMinutes: 60, requiredResourceIDs: []int64{11}}

	s.resources[11] = resource{id: 11, name: "Treatment Room A"}
	s.resources[12] = resource{id: 12, name: "Treatment Room B"}

	for _, patientID := range []int64{77, 78, 79} {
		s.patients[patientID] = true
	}
}

// slotGrid returns the full working-day grid for an appointment type's
// duration, independent of bookings.
func slotGrid(durationMinutes int) []timeslot.Interval {
	if durationMinutes <= 0 {
		durationMinutes = slotMinutes
	}
	var grid []timeslot.Interval
	for start := dayStart; ; start = addMinutes(start, slotMinutes) {
		end := addMinutes(start, durationMinutes)
		if end > dayEnd {
			break
		}
		grid = append(grid, timeslot.Interval{StartTime: start, EndTime: end})
	}
	return grid
}

func addMinutes(clock string, minutes int) string {
	var h, m int
	_, _ = fmt.Sscanf(clock, "%d:%d", &h, &m)
	total := h*60 + m + minutes
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// availableSlots lists the type's grid minus intervals occupied by existing
// appointments of the practitioner on that date. excludeEventID frees the
// named appointment's own window, so a reschedule sees its current slot as
// open.
func (s *memoryStore) availableSlots(practitionerID, typeID int64, date string, excludeEventID int64) ([]timeslot.Interval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.practitioners[practitionerID]
	if !ok || !p.offeredTypes[typeID] {
		return nil, errUnknownPairing
	}
	t := s.types[typeID]

	var out []timeslot.Interval
	for _, slot := range slotGrid(t.durationMinutes) {
		if s.occupiedLocked(practitionerID, date, slot, excludeEventID) {
			continue
		}
		out = append(out, slot)
	}
	if out == nil {
		out = []timeslot.Interval{}
	}
	return out, nil
}

func (s *memoryStore) occupiedLocked(practitionerID int64, date string, slot timeslot.Interval, excludeEventID int64) bool {
	for _, appt := range s.appointmentsByID {
		if appt.practitionerID != practitionerID || appt.date != date {
			continue
		}
		if excludeEventID != 0 && appt.id == excludeEventID {
			continue
		}
		if timeslot.Overlaps(slot, timeslot.Interval{StartTime: appt.startTime, EndTime: appt.endTime}) {
			return true
		}
	}
	return false
}

func (s *memoryStore) book(practitionerID, typeID, patientID int64, date, startTime string, resourceIDs []int64, notes string) (appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.practitioners[practitionerID]
	if !ok || !p.offeredTypes[typeID] {
		return appointment{}, errUnknownPairing
	}
	if !s.patients[patientID] {
		return appointment{}, errUnknownPatient
	}
	t := s.types[typeID]

	slot := timeslot.Interval{StartTime: startTime, EndTime: addMinutes(startTime, t.durationMinutes)}
	onGrid := false
	for _, g := range slotGrid(t.durationMinutes) {
		if g.StartTime == slot.StartTime {
			onGrid = true
			break
		}
	}
	if !onGrid {
		return appointment{}, errSlotOffGrid
	}
	if s.occupiedLocked(practitionerID, date, slot, 0) {
		return appointment{}, errSlotTaken
	}

	ids := make([]int64, 0, len(resourceIDs)+len(t.requiredResourceIDs))
	ids = append(ids, resourceIDs...)
	ids = append(ids, t.requiredResourceIDs...)

	s.nextAppointment++
	appt := appointment{
		id:                s.nextAppointment,
		practitionerID:    practitionerID,
		appointmentTypeID: typeID,
		patientID:         patientID,
		date:              date,
		startTime:         slot.StartTime,
		endTime:           slot.EndTime,
		resourceIDs:       ids,
		notes:             notes,
	}
	s.appointmentsByID[appt.id] = appt
	return appt, nil
}

// calendarDay returns one practitioner-day: its booked events sorted by start
// and the working-day default schedule.
func (s *memoryStore) calendarDay(practitionerID int64, date string) ([]appointment, []timeslot.Interval) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.practitioners[practitionerID]; !ok {
		return nil, nil
	}
	var events []appointment
	for _, appt := range s.appointmentsByID {
		if appt.practitionerID == practitionerID && appt.date == date {
			events = append(events, appt)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].startTime < events[j].startTime })
	return events, []timeslot.Interval{{StartTime: dayStart, EndTime: dayEnd}}
}

// resourceDay returns the appointments occupying one resource on a date.
func (s *memoryStore) resourceDay(resourceID int64, date string) ([]appointment, []timeslot.Interval) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.resources[resourceID]; !ok {
		return nil, nil
	}
	var events []appointment
	for _, appt := range s.appointmentsByID {
		if appt.date != date {
			continue
		}
		for _, rid := range appt.resourceIDs {
			if rid == resourceID {
				events = append(events, appt)
				break
			}
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].startTime < events[j].startTime })
	return events, []timeslot.Interval{{StartTime: dayStart, EndTime: dayEnd}}
}

// freeResources lists the resources with no overlapping usage in the window.
func (s *memoryStore) freeResources(date, startTime, endTime string, excludeEventID int64) (free []resource, total int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	window := timeslot.Interval{StartTime: startTime, EndTime: endTime}
	for _, res := range s.resources {
		busy := false
		for _, appt := range s.appointmentsByID {
			if appt.date != date {
				continue
			}
			if excludeEventID != 0 && appt.id == excludeEventID {
				continue
			}
			for _, rid := range appt.resourceIDs {
				if rid == res.id && timeslot.Overlaps(window, timeslot.Interval{StartTime: appt.startTime, EndTime: appt.endTime}) {
					busy = true
				}
			}
		}
		if !busy {
			free = append(free, res)
		}
	}
	sort.Slice(free, func(i, j int) bool { return free[i].id < free[j].id })
	return free, len(s.resources)
}

func (s *memoryStore) patientAppointments(patientID int64) ([]appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.patients[patientID] {
		return nil, errUnknownPatient
	}
	var out []appointment
	for _, appt := range s.appointmentsByID {
		if appt.patientID == patientID {
			out = append(out, appt)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].date != out[j].date {
			return out[i].date < out[j].date
		}
		return out[i].startTime < out[j].startTime
	})
	return out, nil
}
