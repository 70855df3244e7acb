package cache

import (
	"time"

	"github.com/harborview-health/clinic-scheduling/internal/cachekey"
)

// Snapshot captures the exact cached value (or absence) for one key at
// mutation start. It is owned by the in-flight mutation and used at most once
// for rollback.
type Snapshot struct {
	key     cachekey.Key
	data    any
	existed bool
	taken   time.Time
}

// Key returns the key the snapshot was taken for.
func (sn Snapshot) Key() cachekey.Key { return sn.key }

// Existed reports whether an entry was cached when the snapshot was taken.
func (sn Snapshot) Existed() bool { return sn.existed }

// Data returns the captured value.
func (sn Snapshot) Data() any { return sn.data }

// Snapshot captures the current value for key. If no entry is cached the
// snapshot records absence; restoring it removes whatever a later optimistic
// write created.
func (s *Store) Snapshot(key cachekey.Key) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	sn := Snapshot{key: key, taken: s.now()}
	if entry, ok := s.entries[key.String()]; ok {
		sn.data = entry.Data
		sn.existed = true
	}
	return sn
}

// SnapshotAndMutate captures the snapshot for key and applies fn's result
// through the mutation path in one atomic step. fn receives the current value
// (nil when nothing is cached) and returns the replacement plus whether to
// apply it. No other writer or fetch resolution can interleave between the
// capture and the write, so the snapshot is always the exact value the
// mutation was derived from.
func (s *Store) SnapshotAndMutate(key cachekey.Key, fn func(data any, cached bool) (any, bool)) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	ks := key.String()
	sn := Snapshot{key: key, taken: s.now()}
	entry, cached := s.entries[ks]
	var current any
	if cached {
		sn.data = entry.Data
		sn.existed = true
		current = entry.Data
	}

	data, apply := fn(current, cached)
	if !apply {
		return sn
	}

	s.generations[ks]++
	now := s.now()
	if cached {
		entry.Data = data
		entry.LastUsed = now
		return sn
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
	return sn
}

// Restore reinstates the snapshotted value through the mutation path,
// regardless of writes that happened in between. The generation is bumped so
// in-flight fetch resolutions from before the restore are discarded.
func (s *Store) Restore(sn Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ks := sn.key.String()
	s.generations[ks]++
	if !sn.existed {
		delete(s.entries, ks)
		return
	}
	now := s.now()
	if entry, ok := s.entries[ks]; ok {
		entry.Data = sn.data
		entry.LastUsed = now
		return
	}
	s.entries[ks] = &Entry{
		Key:        sn.key,
		Data:       sn.data,
		FetchedAt:  sn.taken,
		StaleAfter: now,
		LastUsed:   now,
	}
}
