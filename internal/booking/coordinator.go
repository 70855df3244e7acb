// Package booking owns the appointment-creation mutation: optimistic cache
// write, remote call, and commit-or-rollback settlement. Optimism here is a
// latency optimization, not a correctness mechanism; the backend's conflict
// detection is the source of truth and the cache is always reconciled through
// invalidation.
package booking

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harborview-health/clinic-scheduling/internal/cache"
	"github.com/harborview-health/clinic-scheduling/internal/cachekey"
	"github.com/harborview-health/clinic-scheduling/internal/invalidation"
	"github.com/harborview-health/clinic-scheduling/internal/observability/metrics"
	"github.com/harborview-health/clinic-scheduling/internal/schedapi"
	"github.com/harborview-health/clinic-scheduling/internal/timeslot"
	"github.com/harborview-health/clinic-scheduling/pkg/logging"
)

var tracer = otel.Tracer("clinicsched.internal.booking")

// Draft is the booking input. Immutable once submitted.
type Draft struct {
	PractitionerID      int64
	AppointmentTypeID   int64
	Date                string
	StartTime           string
	PatientID           int64
	ClinicNotes         string
	SelectedResourceIDs []int64
}

// Coordinator runs booking mutations against the shared store.
type Coordinator struct {
	store    *cache.Store
	api      *schedapi.Client
	engine   *invalidation.Engine
	clinicID int64
	logger   *logging.Logger
	metrics  *metrics.SchedulingMetrics
}

func New(store *cache.Store, api *schedapi.Client, engine *invalidation.Engine, clinicID int64, logger *logging.Logger, m *metrics.SchedulingMetrics) *Coordinator {
	if store == nil {
		panic("booking: store required")
	}
	if api == nil {
		panic("booking: api client required")
	}
	if engine == nil {
		panic("booking: invalidation engine required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Coordinator{
		store:    store,
		api:      api,
		engine:   engine,
		clinicID: clinicID,
		logger:   logger.Component("booking"),
		metrics:  m,
	}
}

// Book creates the appointment described by draft.
//
// The cached slot list for the canonical (unfiltered) key is mutated
// optimistically before the remote call so the UI reflects unavailability
// immediately. On success the optimistic write stands and every related view
// is invalidated; on failure the pre-mutation snapshot is restored exactly
// and the error is returned. The remote call is never retried.
func (c *Coordinator) Book(ctx context.Context, draft Draft) (*schedapi.Appointment, error) {
	ctx, span := tracer.Start(ctx, "booking.book")
	defer span.End()

	mutationID := uuid.NewString()
	span.SetAttributes(
		attribute.String("clinicsched.mutation_id", mutationID),
		attribute.Int64("clinicsched.practitioner_id", draft.PractitionerID),
		attribute.String("clinicsched.date", draft.Date),
	)

	key := cachekey.Slots(c.clinicID, draft.PractitionerID, draft.AppointmentTypeID, draft.Date, 0)
	family := cachekey.Pattern{
		Family:            cachekey.FamilySlots,
		ClinicID:          cachekey.ID(c.clinicID),
		PractitionerID:    cachekey.ID(draft.PractitionerID),
		AppointmentTypeID: cachekey.ID(draft.AppointmentTypeID),
		Date:              cachekey.Day(draft.Date),
	}

	// a stale in-flight read must not clobber the optimistic write below
	c.store.CancelInflight(family)

	// snapshot and optimistic removal happen as one step; a fetch resolution
	// or racing mutation can land before or after, never in between
	applied := false
	snap := c.store.SnapshotAndMutate(key, func(data any, cached bool) (any, bool) {
		slots, isSlots := data.([]timeslot.Interval)
		if !cached || !isSlots {
			return nil, false
		}
		applied = true
		return timeslot.RemoveByStart(slots, draft.StartTime), true
	})
	if applied {
		c.metrics.ObserveOptimisticApply()
	}

	appt, err := c.api.CreateAppointment(ctx, schedapi.CreateAppointmentRequest{
		PractitionerID:      draft.PractitionerID,
		AppointmentTypeID:   draft.AppointmentTypeID,
		StartDateTime:       draft.Date + "T" + draft.StartTime + ":00",
		PatientID:           draft.PatientID,
		SelectedResourceIDs: draft.SelectedResourceIDs,
		ClinicNotes:         draft.ClinicNotes,
	})
	if err != nil {
		span.RecordError(err)
		if snap.Existed() {
			c.store.Restore(snap)
			c.metrics.ObserveRollback()
		} else {
			// no pre-mutation state captured; a fresh fetch must replace
			// whatever the cache holds
			c.store.Invalidate(family)
		}
		c.metrics.ObserveBooking("rolled_back")
		c.logger.Warn("booking mutation failed",
			"mutation_id", mutationID,
			"practitioner_id", draft.PractitionerID,
			"date", draft.Date,
			"start_time", draft.StartTime,
			"conflict", schedapi.IsConflict(err),
			"error", err)
		return nil, fmt.Errorf("booking: create appointment: %w", err)
	}

	c.engine.Broadcast(ctx, invalidation.Mutation{
		ClinicID:          c.clinicID,
		PractitionerID:    draft.PractitionerID,
		AppointmentTypeID: draft.AppointmentTypeID,
		Date:              draft.Date,
		PatientID:         draft.PatientID,
	})
	c.metrics.ObserveBooking("committed")
	c.logger.Info("appointment booked",
		"mutation_id", mutationID,
		"appointment_id", appt.ID,
		"practitioner_id", draft.PractitionerID,
		"date", draft.Date,
		"start_time", draft.StartTime)
	return appt, nil
}
