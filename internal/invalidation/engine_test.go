package invalidation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview-health/clinic-scheduling/internal/cache"
	"github.com/harborview-health/clinic-scheduling/internal/cachekey"
	"github.com/harborview-health/clinic-scheduling/internal/timeslot"
)

func seedStore(t *testing.T) *cache.Store {
	t.Helper()
	s := cache.NewStore(cache.StoreConfig{})
	slots := []timeslot.Interval{{StartTime: "09:00", EndTime: "10:00"}}

	s.Put(cachekey.Slots(1, 1, 2, "2024-01-01", 0), slots, time.Minute)
	s.Put(cachekey.Slots(1, 1, 2, "2024-01-01", 5), slots, time.Minute)
	s.Put(cachekey.Slots(1, 1, 2, "2024-01-02", 0), slots, time.Minute)
	s.Put(cachekey.Slots(1, 9, 2, "2024-01-01", 0), slots, time.Minute)
	s.Put(cachekey.BatchSlots(1, 1, 2, []string{"2024-01-01", "2024-01-02"}, 0), nil, time.Minute)
	s.Put(cachekey.BatchSlots(1, 1, 2, []string{"2024-01-03"}, 0), nil, time.Minute)
	s.Put(cachekey.ResourceAvailability(1, 1, 2, "2024-01-01", "09:00", "09:30", 0), nil, time.Minute)
	s.Put(cachekey.Calendar(1, []int64{1, 9}, nil, "2024-01-01", "2024-01-07"), nil, time.Minute)
	s.Put(cachekey.Calendar(1, []int64{4}, nil, "2024-02-01", "2024-02-29"), nil, time.Minute)
	s.Put(cachekey.Calendar(2, []int64{1}, nil, "2024-01-01", "2024-01-07"), nil, time.Minute)
	s.Put(cachekey.PatientAppointments(1, 7), nil, time.Minute)
	s.Put(cachekey.PatientAppointments(1, 8), nil, time.Minute)
	return s
}

func fresh(t *testing.T, s *cache.Store, key cachekey.Key) bool {
	t.Helper()
	_, ok, isFresh := s.Lookup(key)
	require.True(t, ok, "entry %v must exist", key)
	return isFresh
}

func TestApply_WidensAcrossFamilies(t *testing.T) {
	s := seedStore(t)
	engine := NewEngine(s, nil, nil)

	n := engine.Apply(context.Background(), Mutation{
		ClinicID: 1, PractitionerID: 1, AppointmentTypeID: 2, Date: "2024-01-01", PatientID: 7,
	})
	assert.Equal(t, 7, n)

	// slot family: every exclusion variant of the exact tuple
	assert.False(t, fresh(t, s, cachekey.Slots(1, 1, 2, "2024-01-01", 0)))
	assert.False(t, fresh(t, s, cachekey.Slots(1, 1, 2, "2024-01-01", 5)))
	// unrelated date and practitioner stay fresh
	assert.True(t, fresh(t, s, cachekey.Slots(1, 1, 2, "2024-01-02", 0)))
	assert.True(t, fresh(t, s, cachekey.Slots(1, 9, 2, "2024-01-01", 0)))

	// batch entries containing the date go stale; others stay
	assert.False(t, fresh(t, s, cachekey.BatchSlots(1, 1, 2, []string{"2024-01-01", "2024-01-02"}, 0)))
	assert.True(t, fresh(t, s, cachekey.BatchSlots(1, 1, 2, []string{"2024-01-03"}, 0)))

	// resource availability for the date
	assert.False(t, fresh(t, s, cachekey.ResourceAvailability(1, 1, 2, "2024-01-01", "09:00", "09:30", 0)))

	// whole-clinic calendar invalidation, other clinics untouched
	assert.False(t, fresh(t, s, cachekey.Calendar(1, []int64{1, 9}, nil, "2024-01-01", "2024-01-07")))
	assert.False(t, fresh(t, s, cachekey.Calendar(1, []int64{4}, nil, "2024-02-01", "2024-02-29")))
	assert.True(t, fresh(t, s, cachekey.Calendar(2, []int64{1}, nil, "2024-01-01", "2024-01-07")))

	// only the booking patient's list
	assert.False(t, fresh(t, s, cachekey.PatientAppointments(1, 7)))
	assert.True(t, fresh(t, s, cachekey.PatientAppointments(1, 8)))
}

func TestApply_EmptyStoreIsZero(t *testing.T) {
	engine := NewEngine(cache.NewStore(cache.StoreConfig{}), nil, nil)
	n := engine.Apply(context.Background(), Mutation{ClinicID: 1, PractitionerID: 1, AppointmentTypeID: 2, Date: "2024-01-01", PatientID: 7})
	assert.Zero(t, n)
}

func TestTargets_SpanExclusionDimension(t *testing.T) {
	targets := Targets(Mutation{ClinicID: 1, PractitionerID: 1, AppointmentTypeID: 2, Date: "2024-01-01", PatientID: 7})

	var slotPattern *cachekey.Pattern
	for i := range targets {
		if targets[i].Family == cachekey.FamilySlots {
			slotPattern = &targets[i]
		}
	}
	require.NotNil(t, slotPattern)
	assert.True(t, slotPattern.Matches(cachekey.Slots(1, 1, 2, "2024-01-01", 0)))
	assert.True(t, slotPattern.Matches(cachekey.Slots(1, 1, 2, "2024-01-01", 99)))
}

func TestBroadcast_NilBusIsLocalOnly(t *testing.T) {
	s := seedStore(t)
	engine := NewEngine(s, nil, nil)

	n := engine.Broadcast(context.Background(), Mutation{
		ClinicID: 1, PractitionerID: 1, AppointmentTypeID: 2, Date: "2024-01-01", PatientID: 7,
	})
	assert.Equal(t, 7, n)
}

func TestSubscribe_NilBusReturnsNil(t *testing.T) {
	engine := NewEngine(cache.NewStore(cache.StoreConfig{}), nil, nil)
	assert.NoError(t, engine.Subscribe(context.Background()))
}
