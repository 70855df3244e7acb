// Package calendarview merges practitioner and resource calendars into one
// event list and derives a per-practitioner availability map from the default
// schedules the backend returns alongside events.
package calendarview

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/harborview-health/clinic-scheduling/internal/cache"
	"github.com/harborview-health/clinic-scheduling/internal/cachekey"
	"github.com/harborview-health/clinic-scheduling/internal/schedapi"
	"github.com/harborview-health/clinic-scheduling/internal/timeslot"
	"github.com/harborview-health/clinic-scheduling/pkg/logging"
)

var tracer = otel.Tracer("clinicsched.internal.calendarview")

// SubjectKind distinguishes whose calendar an event came from.
type SubjectKind string

const (
	SubjectPractitioner SubjectKind = "practitioner"
	SubjectResource     SubjectKind = "resource"
)

// Event is one calendar occupancy, tagged with its subject.
type Event struct {
	SubjectKind       SubjectKind
	SubjectID         int64
	Date              string
	ID                int64
	PatientID         int64
	AppointmentTypeID int64
	StartTime         string
	EndTime           string
	Status            string
}

// CalendarView is the merged result for one window.
type CalendarView struct {
	Window Window
	Events []Event
	// PractitionerAvailability maps practitioner -> date -> working
	// intervals. Derived, never authoritative; rebuilt whole on every
	// refresh.
	PractitionerAvailability map[int64]map[string][]timeslot.Interval
}

// Params selects a calendar view.
type Params struct {
	PractitionerIDs []int64
	ResourceIDs     []int64
	Current         time.Time
	View            View
}

// Config tunes the aggregator.
type Config struct {
	ClinicID int64
	FreshFor time.Duration
	Location *time.Location
}

// Aggregator fetches and merges calendar views through the shared store.
type Aggregator struct {
	store  *cache.Store
	api    *schedapi.Client
	cfg    Config
	logger *logging.Logger
}

func New(store *cache.Store, api *schedapi.Client, cfg Config, logger *logging.Logger) *Aggregator {
	if store == nil {
		panic("calendarview: store required")
	}
	if api == nil {
		panic("calendarview: api client required")
	}
	if cfg.FreshFor <= 0 {
		cfg.FreshFor = 30 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Aggregator{
		store:  store,
		api:    api,
		cfg:    cfg,
		logger: logger.Component("calendarview"),
	}
}

// CalendarView returns the merged calendar for the window containing
// params.Current. Practitioner and resource calendars are fetched in
// parallel. Availability derivation is best effort: malformed results degrade
// to an empty availability map while the events are still returned.
func (a *Aggregator) CalendarView(ctx context.Context, p Params) (*CalendarView, error) {
	window := WindowFor(p.Current, p.View, a.cfg.Location)
	key := cachekey.Calendar(a.cfg.ClinicID, p.PractitionerIDs, p.ResourceIDs, window.Start, window.End)

	if data, cached, fresh := a.store.Lookup(key); cached && fresh {
		return data.(*CalendarView), nil
	}

	ctx, span := tracer.Start(ctx, "calendarview.fetch")
	defer span.End()

	gen := a.store.Generation(key)

	fetchCtx, cancel := context.WithCancel(ctx)
	deregister := a.store.RegisterInflight(key, cancel)
	defer deregister()
	defer cancel()

	var pracResp, resResp *schedapi.CalendarResponse
	g, gctx := errgroup.WithContext(fetchCtx)
	if len(p.PractitionerIDs) > 0 {
		g.Go(func() error {
			resp, err := a.api.Calendar(gctx, schedapi.CalendarRequest{
				PractitionerIDs: p.PractitionerIDs,
				DateStart:       window.Start,
				DateEnd:         window.End,
			})
			pracResp = resp
			return err
		})
	}
	if len(p.ResourceIDs) > 0 {
		g.Go(func() error {
			resp, err := a.api.Calendar(gctx, schedapi.CalendarRequest{
				ResourceIDs: p.ResourceIDs,
				DateStart:   window.Start,
				DateEnd:     window.End,
			})
			resResp = resp
			return err
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	view := &CalendarView{
		Window:                   window,
		Events:                   mergeEvents(pracResp, resResp),
		PractitionerAvailability: a.deriveAvailability(pracResp),
	}
	a.store.PutIfGeneration(key, view, a.cfg.FreshFor, gen)
	return view, nil
}

func mergeEvents(pracResp, resResp *schedapi.CalendarResponse) []Event {
	events := make([]Event, 0)
	appendFrom := func(resp *schedapi.CalendarResponse, kind SubjectKind) {
		if resp == nil {
			return
		}
		for _, result := range resp.Results {
			for _, ev := range result.Events {
				events = append(events, Event{
					SubjectKind:       kind,
					SubjectID:         result.SubjectID,
					Date:              result.Date,
					ID:                ev.ID,
					PatientID:         ev.PatientID,
					AppointmentTypeID: ev.AppointmentTypeID,
					StartTime:         ev.StartTime,
					EndTime:           ev.EndTime,
					Status:            ev.Status,
				})
			}
		}
	}
	appendFrom(pracResp, SubjectPractitioner)
	appendFrom(resResp, SubjectResource)

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Date != events[j].Date {
			return events[i].Date < events[j].Date
		}
		return events[i].StartTime < events[j].StartTime
	})
	return events
}

// deriveAvailability rebuilds the practitioner availability map from default
// schedules. One malformed result must not poison the rest: bad dates or
// intervals are skipped with a warning and the map stays consistent.
func (a *Aggregator) deriveAvailability(resp *schedapi.CalendarResponse) map[int64]map[string][]timeslot.Interval {
	out := make(map[int64]map[string][]timeslot.Interval)
	if resp == nil {
		return out
	}
	for _, result := range resp.Results {
		if result.SubjectID == 0 || !validDate(result.Date) {
			a.logger.Warn("skipping malformed calendar result in availability derivation",
				"subject_id", result.SubjectID, "date", result.Date)
			continue
		}
		intervals := make([]timeslot.Interval, 0, len(result.DefaultSchedule))
		for _, iv := range result.DefaultSchedule {
			if !iv.Valid() {
				a.logger.Warn("skipping malformed schedule interval",
					"subject_id", result.SubjectID, "date", result.Date,
					"start", iv.StartTime, "end", iv.EndTime)
				continue
			}
			intervals = append(intervals, iv)
		}
		byDate := out[result.SubjectID]
		if byDate == nil {
			byDate = make(map[string][]timeslot.Interval)
			out[result.SubjectID] = byDate
		}
		byDate[result.Date] = intervals
	}
	return out
}

func validDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}
