package cache

import (
	"context"
	"time"
)

// Sweep removes entries that have not been used for longer than the keep-for
// window and returns the number evicted. Generations survive eviction so a
// later refetch still loses to any mutation that raced it.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.keepFor)
	evicted := 0
	for ks, entry := range s.entries {
		if entry.LastUsed.Before(cutoff) {
			delete(s.entries, ks)
			evicted++
		}
	}
	if evicted > 0 {
		s.metrics.ObserveEvictions(evicted)
		s.logger.Debug("janitor sweep", "evicted", evicted, "remaining", len(s.entries))
	}
	return evicted
}

// RunJanitor sweeps on every tick until ctx is done. Pass a nil tick to use a
// ticker at the given interval; tests inject their own channel.
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration, tick <-chan time.Time) {
	stop := func() {}
	if tick == nil {
		if interval <= 0 {
			interval = time.Minute
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
			s.Sweep()
		}
	}
}
