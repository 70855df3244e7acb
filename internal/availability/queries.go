// Package availability is the read side of the scheduling cache: single-date
// slot queries, batch multi-date queries, resource availability and patient
// appointment lists, each resolved through the shared store.
package availability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/singleflight"

	"github.com/harborview-health/clinic-scheduling/internal/cache"
	"github.com/harborview-health/clinic-scheduling/internal/cachekey"
	"github.com/harborview-health/clinic-scheduling/internal/observability/metrics"
	"github.com/harborview-health/clinic-scheduling/internal/schedapi"
	"github.com/harborview-health/clinic-scheduling/internal/timeslot"
	"github.com/harborview-health/clinic-scheduling/pkg/logging"
)

var tracer = otel.Tracer("clinicsched.internal.availability")

const (
	defaultFreshFor  = 30 * time.Second
	defaultActiveFor = 5 * time.Minute
)

// SlotsParams selects a single-date slot view.
type SlotsParams struct {
	PractitionerID    int64
	AppointmentTypeID int64
	Date              string
	ExcludeEventID    int64
}

func (p SlotsParams) complete() bool {
	return p.PractitionerID > 0 && p.AppointmentTypeID > 0 && p.Date != ""
}

// BatchParams selects a multi-date slot view.
type BatchParams struct {
	PractitionerID    int64
	AppointmentTypeID int64
	Dates             []string
	ExcludeEventID    int64
}

// ResourceParams selects a resource lookup for a concrete window.
type ResourceParams struct {
	PractitionerID    int64
	AppointmentTypeID int64
	Date              string
	StartTime         string
	EndTime           string
	ExcludeEventID    int64
}

// Config tunes the query layer's freshness policy.
type Config struct {
	ClinicID int64
	// FreshFor is how long fetched slot data is served without refetching.
	FreshFor time.Duration
	// ActiveFor is how long a slot query stays in the background refresh set
	// after its last use.
	ActiveFor time.Duration
}

type activeQuery struct {
	params   SlotsParams
	lastUsed time.Time
}

// Queries resolves availability views against the store, fetching from the
// backend on miss or staleness. Concurrent callers of the same key share one
// fetch.
type Queries struct {
	store   *cache.Store
	api     *schedapi.Client
	cfg     Config
	logger  *logging.Logger
	metrics *metrics.SchedulingMetrics
	now     func() time.Time

	group singleflight.Group

	mu     sync.Mutex
	active map[string]activeQuery
}

func New(store *cache.Store, api *schedapi.Client, cfg Config, logger *logging.Logger, m *metrics.SchedulingMetrics) *Queries {
	if store == nil {
		panic("availability: store required")
	}
	if api == nil {
		panic("availability: api client required")
	}
	if cfg.FreshFor <= 0 {
		cfg.FreshFor = defaultFreshFor
	}
	if cfg.ActiveFor <= 0 {
		cfg.ActiveFor = defaultActiveFor
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Queries{
		store:   store,
		api:     api,
		cfg:     cfg,
		logger:  logger.Component("availability"),
		metrics: m,
		now:     time.Now,
		active:  make(map[string]activeQuery),
	}
}

// Slots returns the bookable starts for a practitioner, appointment type and
// date. An incomplete selection returns ok=false without issuing a request:
// the view is "not yet available", not an error. Fresh cached data is served
// without I/O.
func (q *Queries) Slots(ctx context.Context, p SlotsParams) (slots []timeslot.Interval, ok bool, err error) {
	if !p.complete() {
		return nil, false, nil
	}
	key := cachekey.Slots(q.cfg.ClinicID, p.PractitionerID, p.AppointmentTypeID, p.Date, p.ExcludeEventID)
	q.markActive(key, p)

	if data, cached, fresh := q.store.Lookup(key); cached && fresh {
		return data.([]timeslot.Interval), true, nil
	}

	fetched, err := q.fetchSlots(ctx, key, p)
	if err != nil {
		return nil, false, err
	}
	return fetched, true, nil
}

func (q *Queries) fetchSlots(ctx context.Context, key cachekey.Key, p SlotsParams) ([]timeslot.Interval, error) {
	ctx, span := tracer.Start(ctx, "availability.slots")
	defer span.End()

	v, err, _ := q.group.Do(key.String(), func() (any, error) {
		gen := q.store.Generation(key)

		fetchCtx, cancel := context.WithCancel(ctx)
		deregister := q.store.RegisterInflight(key, cancel)
		defer deregister()
		defer cancel()

		slots, err := q.api.GetSlots(fetchCtx, schedapi.SlotsRequest{
			PractitionerID:    p.PractitionerID,
			AppointmentTypeID: p.AppointmentTypeID,
			Date:              p.Date,
			ExcludeEventID:    p.ExcludeEventID,
		})
		if err != nil {
			return nil, err
		}
		q.store.PutIfGeneration(key, slots, q.cfg.FreshFor, gen)
		return slots, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return v.([]timeslot.Interval), nil
}

// BatchSlots returns slot lists keyed by the date strings the server embeds
// in each result item. An empty date selection short-circuits to an empty map
// without a request. Items missing a date or a slot list are dropped.
func (q *Queries) BatchSlots(ctx context.Context, p BatchParams) (map[string][]timeslot.Interval, error) {
	if len(p.Dates) == 0 {
		return map[string][]timeslot.Interval{}, nil
	}
	key := cachekey.BatchSlots(q.cfg.ClinicID, p.PractitionerID, p.AppointmentTypeID, p.Dates, p.ExcludeEventID)

	if data, cached, fresh := q.store.Lookup(key); cached && fresh {
		return data.(map[string][]timeslot.Interval), nil
	}

	ctx, span := tracer.Start(ctx, "availability.batch_slots")
	defer span.End()

	v, err, _ := q.group.Do(key.String(), func() (any, error) {
		gen := q.store.Generation(key)

		fetchCtx, cancel := context.WithCancel(ctx)
		deregister := q.store.RegisterInflight(key, cancel)
		defer deregister()
		defer cancel()

		resp, err := q.api.BatchSlots(fetchCtx, schedapi.BatchSlotsRequest{
			PractitionerID:    p.PractitionerID,
			AppointmentTypeID: p.AppointmentTypeID,
			Dates:             p.Dates,
			ExcludeEventID:    p.ExcludeEventID,
		})
		if err != nil {
			return nil, err
		}

		byDate := make(map[string][]timeslot.Interval, len(resp.Results))
		for _, item := range resp.Results {
			if item.Date == "" || item.AvailableSlots == nil {
				q.logger.Warn("dropping malformed batch slot item", "date", item.Date)
				continue
			}
			byDate[item.Date] = item.AvailableSlots
		}
		q.store.PutIfGeneration(key, byDate, q.cfg.FreshFor, gen)
		return byDate, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return v.(map[string][]timeslot.Interval), nil
}

// ResourceAvailability returns which resources are free for a concrete
// start/end window.
func (q *Queries) ResourceAvailability(ctx context.Context, p ResourceParams) (*schedapi.ResourceAvailabilityResponse, error) {
	key := cachekey.ResourceAvailability(q.cfg.ClinicID, p.PractitionerID, p.AppointmentTypeID, p.Date, p.StartTime, p.EndTime, p.ExcludeEventID)

	if data, cached, fresh := q.store.Lookup(key); cached && fresh {
		return data.(*schedapi.ResourceAvailabilityResponse), nil
	}

	ctx, span := tracer.Start(ctx, "availability.resource_availability")
	defer span.End()

	gen := q.store.Generation(key)
	resp, err := q.api.ResourceAvailability(ctx, schedapi.ResourceAvailabilityRequest{
		AppointmentTypeID: p.AppointmentTypeID,
		PractitionerID:    p.PractitionerID,
		Date:              p.Date,
		StartTime:         p.StartTime,
		EndTime:           p.EndTime,
		ExcludeEventID:    p.ExcludeEventID,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	q.store.PutIfGeneration(key, resp, q.cfg.FreshFor, gen)
	return resp, nil
}

// PatientAppointments returns the cached appointment list for one patient.
func (q *Queries) PatientAppointments(ctx context.Context, patientID int64) ([]schedapi.Appointment, error) {
	key := cachekey.PatientAppointments(q.cfg.ClinicID, patientID)

	if data, cached, fresh := q.store.Lookup(key); cached && fresh {
		return data.([]schedapi.Appointment), nil
	}

	gen := q.store.Generation(key)
	resp, err := q.api.PatientAppointments(ctx, patientID)
	if err != nil {
		return nil, err
	}
	q.store.PutIfGeneration(key, resp.Appointments, q.cfg.FreshFor, gen)
	return resp.Appointments, nil
}

func (q *Queries) markActive(key cachekey.Key, p SlotsParams) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.active[key.String()] = activeQuery{params: p, lastUsed: q.now()}
}
