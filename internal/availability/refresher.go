package availability

import (
	"context"
	"time"

	"github.com/harborview-health/clinic-scheduling/internal/cachekey"
)

// RunRefresher re-fetches every recently used slot query on each tick, so
// other staff booking concurrently shows up within one interval even when the
// view is idle. Pass a nil tick to use a ticker at the given interval; tests
// inject their own channel.
func (q *Queries) RunRefresher(ctx context.Context, interval time.Duration, tick <-chan time.Time) {
	stop := func() {}
	if tick == nil {
		if interval <= 0 {
			interval = 60 * time.Second
		}
		ticker := time.NewTicker(interval)
		tick = ticker.C
		stop = ticker.Stop
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			q.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce re-fetches all active slot queries and prunes ones unused for
// longer than the active window. Individual fetch failures are logged and
// skipped; staleness for one view must not starve the rest.
func (q *Queries) RefreshOnce(ctx context.Context) {
	q.metrics.ObserveRefreshRun()

	cutoff := q.now().Add(-q.cfg.ActiveFor)

	q.mu.Lock()
	params := make([]SlotsParams, 0, len(q.active))
	for ks, entry := range q.active {
		if entry.lastUsed.Before(cutoff) {
			delete(q.active, ks)
			continue
		}
		params = append(params, entry.params)
	}
	q.mu.Unlock()

	for _, p := range params {
		if ctx.Err() != nil {
			return
		}
		key := cachekey.Slots(q.cfg.ClinicID, p.PractitionerID, p.AppointmentTypeID, p.Date, p.ExcludeEventID)
		if _, err := q.fetchSlots(ctx, key, p); err != nil {
			q.logger.Warn("background slot refresh failed", "practitioner_id", p.PractitionerID, "date", p.Date, "error", err)
		}
	}
}
