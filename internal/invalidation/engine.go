// Package invalidation widens the staleness footprint of a settled booking
// mutation: every cached view that could still show the booked slot is marked
// stale so the next read refetches it.
package invalidation

import (
	"context"

	"github.com/harborview-health/clinic-scheduling/internal/cache"
	"github.com/harborview-health/clinic-scheduling/internal/cachekey"
	"github.com/harborview-health/clinic-scheduling/pkg/logging"
)

// Mutation carries the dimensions of a settled booking mutation.
type Mutation struct {
	ClinicID          int64  `json:"clinic_id"`
	PractitionerID    int64  `json:"practitioner_id"`
	AppointmentTypeID int64  `json:"appointment_type_id"`
	Date              string `json:"date"`
	PatientID         int64  `json:"patient_id"`

	// Origin identifies the publishing session on the bus so subscribers can
	// skip their own mutations.
	Origin string `json:"origin,omitempty"`
}

// Targets computes the patterns a settled mutation invalidates. The result is
// independent of cache contents and insertion order:
//   - the slot family for the exact (clinic, practitioner, type, date) across
//     every exclude-event variant, since exclusion-scoped views share the same
//     underlying availability;
//   - batch-slot entries whose date set contains the date;
//   - resource availability for the clinic and date;
//   - every calendar entry for the clinic (coarse by choice: certainty of
//     consistency over precise overlap computation);
//   - the patient's appointment list.
func Targets(m Mutation) []cachekey.Pattern {
	return []cachekey.Pattern{
		{
			Family:            cachekey.FamilySlots,
			ClinicID:          cachekey.ID(m.ClinicID),
			PractitionerID:    cachekey.ID(m.PractitionerID),
			AppointmentTypeID: cachekey.ID(m.AppointmentTypeID),
			Date:              cachekey.Day(m.Date),
		},
		{
			Family:            cachekey.FamilyBatchSlots,
			ClinicID:          cachekey.ID(m.ClinicID),
			PractitionerID:    cachekey.ID(m.PractitionerID),
			AppointmentTypeID: cachekey.ID(m.AppointmentTypeID),
			Date:              cachekey.Day(m.Date),
		},
		{
			Family:   cachekey.FamilyResourceAvailability,
			ClinicID: cachekey.ID(m.ClinicID),
			Date:     cachekey.Day(m.Date),
		},
		{
			Family:   cachekey.FamilyCalendar,
			ClinicID: cachekey.ID(m.ClinicID),
		},
		{
			Family:    cachekey.FamilyPatientAppointments,
			ClinicID:  cachekey.ID(m.ClinicID),
			PatientID: cachekey.ID(m.PatientID),
		},
	}
}

// Engine applies mutation invalidations to a store and optionally fans them
// out to other sessions over a bus. Invalidation counts are observed by the
// store itself.
type Engine struct {
	store  *cache.Store
	bus    *Bus
	logger *logging.Logger
}

// NewEngine creates an engine. bus may be nil for local-only invalidation.
func NewEngine(store *cache.Store, bus *Bus, logger *logging.Logger) *Engine {
	if store == nil {
		panic("invalidation: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{store: store, bus: bus, logger: logger.Component("invalidation")}
}

// Apply marks every target of m stale in the local store and returns the
// number of entries invalidated.
func (e *Engine) Apply(_ context.Context, m Mutation) int {
	total := 0
	for _, pattern := range Targets(m) {
		total += e.store.Invalidate(pattern)
	}
	e.logger.Debug("applied mutation invalidation",
		"practitioner_id", m.PractitionerID, "date", m.Date, "entries", total)
	return total
}

// Broadcast applies m locally and publishes it to the bus, when one is
// configured. Publish failures are logged, not returned: local consistency
// never depends on the bus being reachable.
func (e *Engine) Broadcast(ctx context.Context, m Mutation) int {
	total := e.Apply(ctx, m)
	if e.bus != nil {
		if err := e.bus.Publish(ctx, m); err != nil {
			e.logger.Warn("failed to publish invalidation", "error", err)
		}
	}
	return total
}

// Subscribe runs the bus loop, applying remote mutations to the local store
// until ctx is done. No-op without a bus.
func (e *Engine) Subscribe(ctx context.Context) error {
	if e.bus == nil {
		return nil
	}
	return e.bus.Run(ctx, func(m Mutation) {
		e.Apply(ctx, m)
	})
}
