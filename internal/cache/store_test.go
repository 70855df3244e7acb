package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview-health/clinic-scheduling/internal/cachekey"
	"github.com/harborview-health/clinic-scheduling/internal/timeslot"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	return NewStore(StoreConfig{KeepFor: 5 * time.Minute, Now: clock.now}), clock
}

func slotKey(exclude int64) cachekey.Key {
	return cachekey.Slots(1, 5, 2, "2024-01-01", exclude)
}

func twoSlots() []timeslot.Interval {
	return []timeslot.Interval{
		{StartTime: "09:00", EndTime: "10:00"},
		{StartTime: "10:00", EndTime: "11:00"},
	}
}

func TestLookup_MissThenFreshHit(t *testing.T) {
	s, clock := newTestStore(t)
	key := slotKey(0)

	_, ok, _ := s.Lookup(key)
	require.False(t, ok)

	s.Put(key, twoSlots(), 30*time.Second)

	data, ok, fresh := s.Lookup(key)
	require.True(t, ok)
	assert.True(t, fresh)
	assert.Equal(t, twoSlots(), data)

	clock.advance(31 * time.Second)
	_, ok, fresh = s.Lookup(key)
	assert.True(t, ok, "stale entry still returned")
	assert.False(t, fresh)
}

func TestPutIfGeneration_DroppedAfterMutationWrite(t *testing.T) {
	s, _ := newTestStore(t)
	key := slotKey(0)
	s.Put(key, twoSlots(), 30*time.Second)

	gen := s.Generation(key)

	// a booking mutation writes optimistically while the fetch is in flight
	optimistic := timeslot.RemoveByStart(twoSlots(), "09:00")
	s.Write(key, optimistic)

	stored := s.PutIfGeneration(key, twoSlots(), 30*time.Second, gen)
	assert.False(t, stored, "stale resolution must lose to the optimistic write")

	data, ok, _ := s.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, optimistic, data)
}

func TestPutIfGeneration_StoresWhenUncontended(t *testing.T) {
	s, _ := newTestStore(t)
	key := slotKey(0)

	gen := s.Generation(key)
	assert.True(t, s.PutIfGeneration(key, twoSlots(), 30*time.Second, gen))

	data, ok, fresh := s.Lookup(key)
	require.True(t, ok)
	assert.True(t, fresh)
	assert.Equal(t, twoSlots(), data)
}

func TestSnapshotRestore_ExactValue(t *testing.T) {
	s, _ := newTestStore(t)
	key := slotKey(0)
	s.Put(key, twoSlots(), 30*time.Second)

	snap := s.Snapshot(key)
	s.Write(key, timeslot.RemoveByStart(twoSlots(), "09:00"))
	s.Restore(snap)

	data, ok, _ := s.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, twoSlots(), data)
}

func TestSnapshotRestore_AbsenceDeletesOptimisticEntry(t *testing.T) {
	s, _ := newTestStore(t)
	key := slotKey(0)

	snap := s.Snapshot(key)
	require.False(t, snap.Existed())

	s.Write(key, twoSlots())
	s.Restore(snap)

	_, ok, _ := s.Lookup(key)
	assert.False(t, ok, "restore of an absent snapshot removes the entry")
}

func TestRestore_IsolatedFromConcurrentMutation(t *testing.T) {
	s, _ := newTestStore(t)
	key := slotKey(0)
	s.Put(key, twoSlots(), 30*time.Second)

	// two racing mutations snapshot independently
	snapA := s.Snapshot(key)
	s.Write(key, timeslot.RemoveByStart(twoSlots(), "09:00"))

	snapB := s.Snapshot(key)
	afterA := timeslot.RemoveByStart(twoSlots(), "09:00")
	s.Write(key, timeslot.RemoveByStart(afterA, "10:00"))

	// B fails and rolls back to ITS snapshot, not to the original state
	s.Restore(snapB)
	data, _, _ := s.Lookup(key)
	assert.Equal(t, afterA, data)

	// A failing later still restores its own pre-mutation view
	s.Restore(snapA)
	data, _, _ = s.Lookup(key)
	assert.Equal(t, twoSlots(), data)
}

func TestInvalidate_SpansExclusionVariants(t *testing.T) {
	s, _ := newTestStore(t)
	s.Put(slotKey(0), twoSlots(), 30*time.Second)
	s.Put(slotKey(5), twoSlots(), 30*time.Second)
	other := cachekey.Slots(1, 5, 2, "2024-01-02", 0)
	s.Put(other, twoSlots(), 30*time.Second)

	n := s.Invalidate(cachekey.Pattern{
		Family:            cachekey.FamilySlots,
		ClinicID:          cachekey.ID(1),
		PractitionerID:    cachekey.ID(5),
		AppointmentTypeID: cachekey.ID(2),
		Date:              cachekey.Day("2024-01-01"),
	})
	assert.Equal(t, 2, n)

	_, _, fresh := s.Lookup(slotKey(0))
	assert.False(t, fresh)
	_, _, fresh = s.Lookup(slotKey(5))
	assert.False(t, fresh)
	_, _, fresh = s.Lookup(other)
	assert.True(t, fresh, "unrelated date must stay fresh")
}

func TestInvalidate_BumpsGeneration(t *testing.T) {
	s, _ := newTestStore(t)
	key := slotKey(0)
	s.Put(key, twoSlots(), 30*time.Second)

	gen := s.Generation(key)
	s.Invalidate(cachekey.Pattern{Family: cachekey.FamilySlots})

	assert.False(t, s.PutIfGeneration(key, twoSlots(), 30*time.Second, gen))
}

func TestCancelInflight(t *testing.T) {
	s, _ := newTestStore(t)
	key := slotKey(3)

	ctx, cancel := context.WithCancel(context.Background())
	done := s.RegisterInflight(key, cancel)
	defer done()

	n := s.CancelInflight(cachekey.Pattern{
		Family:         cachekey.FamilySlots,
		PractitionerID: cachekey.ID(5),
		Date:           cachekey.Day("2024-01-01"),
	})
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	// second cancel finds nothing and does not panic
	assert.Equal(t, 0, s.CancelInflight(cachekey.Pattern{Family: cachekey.FamilySlots}))
}

func TestSweep_EvictsOnlyUnused(t *testing.T) {
	s, clock := newTestStore(t)
	old := slotKey(0)
	used := cachekey.Slots(1, 6, 2, "2024-01-01", 0)
	s.Put(old, twoSlots(), 30*time.Second)
	s.Put(used, twoSlots(), 30*time.Second)

	clock.advance(4 * time.Minute)
	s.Lookup(used) // refresh LastUsed
	clock.advance(2 * time.Minute)

	evicted := s.Sweep()
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, s.Len())

	_, ok, _ := s.Lookup(old)
	assert.False(t, ok)
	_, ok, _ = s.Lookup(used)
	assert.True(t, ok)
}

func TestRunJanitor_SweepsOnTick(t *testing.T) {
	s, clock := newTestStore(t)
	s.Put(slotKey(0), twoSlots(), 30*time.Second)
	clock.advance(10 * time.Minute)

	tick := make(chan time.Time, 1)
	ctx, cancel := context.WithCancel(context.Background())
	go s.RunJanitor(ctx, 0, tick)

	tick <- clock.now()
	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
}

func TestKeys_FiltersByFamily(t *testing.T) {
	s, _ := newTestStore(t)
	s.Put(slotKey(0), twoSlots(), 30*time.Second)
	s.Put(cachekey.PatientAppointments(1, 9), nil, 30*time.Second)

	keys := s.Keys(cachekey.FamilySlots)
	require.Len(t, keys, 1)
	assert.Equal(t, cachekey.FamilySlots, keys[0].Family)
}

func TestSnapshotAndMutate_SeesAcceptedResolution(t *testing.T) {
	s, _ := newTestStore(t)
	key := slotKey(0)
	s.Put(key, twoSlots(), 30*time.Second)

	// a fetch that started earlier resolves first: the server dropped 09:00
	gen := s.Generation(key)
	resolved := []timeslot.Interval{{StartTime: "10:00", EndTime: "11:00"}}
	require.True(t, s.PutIfGeneration(key, resolved, 30*time.Second, gen))

	var seen []timeslot.Interval
	snap := s.SnapshotAndMutate(key, func(data any, cached bool) (any, bool) {
		require.True(t, cached)
		seen = data.([]timeslot.Interval)
		return timeslot.RemoveByStart(seen, "10:00"), true
	})

	// the mutation worked on the resolved value, not the pre-resolution one
	assert.Equal(t, resolved, seen)
	assert.Equal(t, resolved, snap.Data())

	data, ok, _ := s.Lookup(key)
	require.True(t, ok)
	assert.Empty(t, data.([]timeslot.Interval), "both the fetch's removal and the mutation's must hold")

	// a straggler resolution from before the mutation is now discarded
	assert.False(t, s.PutIfGeneration(key, twoSlots(), 30*time.Second, gen))
}

func TestSnapshotAndMutate_ConcurrentRemovalsAllApply(t *testing.T) {
	s, _ := newTestStore(t)
	key := slotKey(0)

	var slots []timeslot.Interval
	starts := []string{"09:00", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00"}
	for _, start := range starts {
		slots = append(slots, timeslot.Interval{StartTime: start, EndTime: addHour(start)})
	}
	s.Put(key, slots, 30*time.Second)

	var wg sync.WaitGroup
	for _, start := range starts {
		wg.Add(1)
		go func(start string) {
			defer wg.Done()
			s.SnapshotAndMutate(key, func(data any, cached bool) (any, bool) {
				return timeslot.RemoveByStart(data.([]timeslot.Interval), start), true
			})
		}(start)
	}
	wg.Wait()

	data, ok, _ := s.Lookup(key)
	require.True(t, ok)
	assert.Empty(t, data.([]timeslot.Interval), "no removal may be lost between racing mutations")
}

func TestSnapshotAndMutate_DeclinedLeavesStoreUntouched(t *testing.T) {
	s, _ := newTestStore(t)
	key := slotKey(0)

	snap := s.SnapshotAndMutate(key, func(data any, cached bool) (any, bool) {
		assert.Nil(t, data)
		assert.False(t, cached)
		return nil, false
	})
	assert.False(t, snap.Existed())

	_, ok, _ := s.Lookup(key)
	assert.False(t, ok, "a declined mutation must not create an entry")
	assert.Zero(t, s.Generation(key))
}

func addHour(clock string) string {
	t, _ := time.Parse("15:04", clock)
	return t.Add(time.Hour).Format("15:04")
}
