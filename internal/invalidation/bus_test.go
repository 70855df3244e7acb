package invalidation

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview-health/clinic-scheduling/internal/cache"
	"github.com/harborview-health/clinic-scheduling/internal/cachekey"
	"github.com/harborview-health/clinic-scheduling/internal/timeslot"
)

func busPair(t *testing.T) (*Bus, *Bus) {
	t.Helper()
	mr := miniredis.RunT(t)

	a := NewBus(redis.NewClient(&redis.Options{Addr: mr.Addr()}), nil)
	b := NewBus(redis.NewClient(&redis.Options{Addr: mr.Addr()}), nil)
	return a, b
}

func TestBus_RoundTripInvalidatesRemoteStore(t *testing.T) {
	publisher, subscriber := busPair(t)

	remoteStore := cache.NewStore(cache.StoreConfig{})
	key := cachekey.Slots(1, 1, 2, "2024-01-01", 0)
	remoteStore.Put(key, []timeslot.Interval{{StartTime: "09:00", EndTime: "10:00"}}, time.Minute)

	remoteEngine := NewEngine(remoteStore, subscriber, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- remoteEngine.Subscribe(ctx) }()

	// give the subscriber a moment to establish before publishing
	require.Eventually(t, func() bool {
		err := publisher.Publish(ctx, Mutation{
			ClinicID: 1, PractitionerID: 1, AppointmentTypeID: 2, Date: "2024-01-01", PatientID: 7,
		})
		if err != nil {
			return false
		}
		_, ok, fresh := remoteStore.Lookup(key)
		return ok && !fresh
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestBus_IgnoresOwnOrigin(t *testing.T) {
	publisher, _ := busPair(t)

	localStore := cache.NewStore(cache.StoreConfig{})
	key := cachekey.Slots(1, 1, 2, "2024-01-01", 0)
	localStore.Put(key, nil, time.Minute)

	// subscribe with the SAME bus that publishes
	engine := NewEngine(localStore, publisher, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = engine.Subscribe(ctx) }()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, publisher.Publish(ctx, Mutation{
		ClinicID: 1, PractitionerID: 1, AppointmentTypeID: 2, Date: "2024-01-01", PatientID: 7,
	}))
	time.Sleep(100 * time.Millisecond)

	_, ok, fresh := localStore.Lookup(key)
	require.True(t, ok)
	assert.True(t, fresh, "a session must not reapply its own published mutation")
}

func TestBus_OriginsAreDistinct(t *testing.T) {
	a, b := busPair(t)
	assert.NotEqual(t, a.Origin(), b.Origin())
	assert.NotEmpty(t, a.Origin())
}
