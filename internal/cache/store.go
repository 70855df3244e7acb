// Package cache implements the shared view store for the scheduling client.
// The store is an explicitly owned object passed by reference to the query
// layers and the booking coordinator; there is no package-level singleton.
//
// Write discipline: the query layers write through fetch resolution
// (Put/PutIfGeneration) and the booking coordinator writes through the
// mutation path (Write/Restore/Invalidate). Nothing else mutates entries;
// readers must treat returned data as immutable.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/harborview-health/clinic-scheduling/internal/cachekey"
	"github.com/harborview-health/clinic-scheduling/internal/observability/metrics"
	"github.com/harborview-health/clinic-scheduling/pkg/logging"
)

// Entry is a cached view value with freshness metadata.
type Entry struct {
	Key        cachekey.Key
	Data       any
	FetchedAt  time.Time
	StaleAfter time.Time
	LastUsed   time.Time
	Stale      bool
}

type inflightFetch struct {
	key    cachekey.Key
	cancel context.CancelFunc
}

// Store holds cached scheduling views keyed by canonical cache keys.
type Store struct {
	mu          sync.Mutex
	entries     map[string]*Entry
	generations map[string]uint64
	inflight    map[string]inflightFetch

	keepFor time.Duration
	now     func() time.Time
	logger  *logging.Logger
	metrics *metrics.SchedulingMetrics
}

// StoreConfig configures a Store. Zero values fall back to defaults.
type StoreConfig struct {
	// KeepFor is how long an unused entry survives before the janitor
	// evicts it.
	KeepFor time.Duration
	Now     func() time.Time
	Logger  *logging.Logger
	Metrics *metrics.SchedulingMetrics
}

const defaultKeepFor = 5 * time.Minute

func NewStore(cfg StoreConfig) *Store {
	keepFor := cfg.KeepFor
	if keepFor <= 0 {
		keepFor = defaultKeepFor
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		entries:     make(map[string]*Entry),
		generations: make(map[string]uint64),
		inflight:    make(map[string]inflightFetch),
		keepFor:     keepFor,
		now:         now,
		logger:      logger.Component("cache"),
		metrics:     cfg.Metrics,
	}
}

// Lookup returns the cached data for key, whether an entry exists, and
// whether it is still fresh. A stale entry is still returned so callers can
// serve it while a refetch is pending.
func (s *Store) Lookup(key cachekey.Key) (data any, ok, fresh bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key.String()]
	if !ok {
		s.metrics.ObserveCacheMiss(string(key.Family))
		return nil, false, false
	}
	now := s.now()
	entry.LastUsed = now
	fresh = !entry.Stale && now.Before(entry.StaleAfter)
	if fresh {
		s.metrics.ObserveCacheHit(string(key.Family))
	} else {
		s.metrics.ObserveCacheMiss(string(key.Family))
	}
	return entry.Data, true, fresh
}

// Generation returns the current generation for key. Fetchers read it before
// issuing a request and pass it back to PutIfGeneration.
func (s *Store) Generation(key cachekey.Key) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[key.String()]
}

// Put stores data for key through the fetch-resolution path, unconditionally.
func (s *Store) Put(key cachekey.Key, data any, freshFor time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(key, data, freshFor)
}

// PutIfGeneration stores data only if no mutation-path write intervened since
// gen was read. A dropped resolution returns false; the optimistic write wins
// over the stale in-flight read.
func (s *Store) PutIfGeneration(key cachekey.Key, data any, freshFor time.Duration, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ks := key.String()
	if s.generations[ks] != gen {
		s.logger.Debug("dropping stale fetch resolution", "key", ks, "fetched_gen", gen, "current_gen", s.generations[ks])
		return false
	}
	s.putLocked(key, data, freshFor)
	return true
}

func (s *Store) putLocked(key cachekey.Key, data any, freshFor time.Duration) {
	now := s.now()
	s.entries[key.String()] = &Entry{
		Key:        key,
		Data:       data,
		FetchedAt:  now,
		StaleAfter: now.Add(freshFor),
		LastUsed:   now,
	}
}

// Write replaces the data for key through the mutation path and bumps the
// generation so any in-flight fetch resolution for the key is discarded.
// Freshness metadata of an existing entry is preserved.
func (s *Store) Write(key cachekey.Key, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ks := key.String()
	s.generations[ks]++
	now := s.now()
	if entry, ok := s.entries[ks]; ok {
		entry.Data = data
		entry.LastUsed = now
		return
	}
	s.entries[ks] = &Entry{
		Key:       key,
		Data:      data,
		FetchedAt: now,
		// freshly written optimistic data has no server freshness; it is
		// immediately refetchable
		StaleAfter: now,
		LastUsed:   now,
	}
}

// Invalidate marks every entry matching the pattern stale and bumps its
// generation. Entries are not deleted; refetch happens lazily on next read.
// Returns the number of entries marked.
func (s *Store) Invalidate(p cachekey.Pattern) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for ks, entry := range s.entries {
		if !p.Matches(entry.Key) {
			continue
		}
		entry.Stale = true
		s.generations[ks]++
		count++
	}
	s.metrics.ObserveInvalidation(string(p.Family), count)
	return count
}

// RegisterInflight records a cancel func for an in-flight fetch addressing
// key. The returned func deregisters it; callers defer it around the fetch.
func (s *Store) RegisterInflight(key cachekey.Key, cancel context.CancelFunc) func() {
	ks := key.String()
	s.mu.Lock()
	s.inflight[ks] = inflightFetch{key: key, cancel: cancel}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.inflight, ks)
		s.mu.Unlock()
	}
}

// CancelInflight cancels every registered fetch whose key matches the
// pattern. Best effort: canceling when nothing is in flight is a no-op.
func (s *Store) CancelInflight(p cachekey.Pattern) int {
	s.mu.Lock()
	cancels := make([]context.CancelFunc, 0, 2)
	for ks, f := range s.inflight {
		if p.Matches(f.key) {
			cancels = append(cancels, f.cancel)
			delete(s.inflight, ks)
		}
	}
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return len(cancels)
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Keys returns the keys of all cached entries belonging to family.
func (s *Store) Keys(family cachekey.Family) []cachekey.Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]cachekey.Key, 0, len(s.entries))
	for _, entry := range s.entries {
		if entry.Key.Family == family {
			out = append(out, entry.Key)
		}
	}
	return out
}
