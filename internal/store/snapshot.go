package store

import "example.com/parkour-leaderboard/internal/leaderboard"

// Snapshot is a consistent copy of every collection.
type Snapshot struct {
	Version        uint64
	Events         []Event
	Maps           map[string][]Map
	Routes         map[string][]Route
	Configurations map[string][]Configuration
	Scores         map[string][]leaderboard.Entry
}

// RestoreReport counts what Restore kept and what it had to drop.
type RestoreReport struct {
	Events         int
	Maps           int
	Routes         int
	Configurations int
	ScoreLists     int
	Orphans        int
}

// lockAll takes every collection lock in the global order and returns the
// matching release.
func (s *Store) lockAll(write bool) func() {
	order := []locker{s.events, s.maps, s.routes, s.configurations, s.scores}
	for _, l := range order {
		if write {
			l.lock()
		} else {
			l.rlock()
		}
	}
	return func() {
		for i := len(order) - 1; i >= 0; i-- {
			if write {
				order[i].unlock()
			} else {
				order[i].runlock()
			}
		}
	}
}

// Snapshot copies all collections while holding every read lock, so a child
// is never captured without its parent or its score list.
func (s *Store) Snapshot() Snapshot {
	release := s.lockAll(false)
	defer release()

	return Snapshot{
		Version:        s.version.Load(),
		Events:         s.events.copyBucket(s.events.buckets[rootKey]),
		Maps:           s.maps.copyAllLocked(),
		Routes:         s.routes.copyAllLocked(),
		Configurations: s.configurations.copyAllLocked(),
		Scores:         s.scores.copyAllLocked(),
	}
}

// Restore replaces the whole store with snap. Buckets are rebuilt from the
// parents present in snap: every entity gets its child and score buckets
// even when snap lacks them, and buckets whose owner is missing are dropped.
// Score lists are normalized to one best entry per player, sorted.
func (s *Store) Restore(snap Snapshot) RestoreReport {
	release := s.lockAll(true)
	defer release()

	var rep RestoreReport

	seen := make(map[string]bool)
	events := keep(snap.Events, seen, &rep)
	s.events.buckets = map[string][]Event{rootKey: events}
	rep.Events = len(events)

	s.maps.buckets = make(map[string][]Map, len(events))
	var mapIDs []string
	for _, e := range events {
		ms := keep(snap.Maps[e.ID], seen, &rep)
		s.maps.buckets[e.ID] = ms
		for _, m := range ms {
			mapIDs = append(mapIDs, m.ID)
		}
		rep.Maps += len(ms)
	}
	rep.Orphans += orphanBuckets(snap.Maps, s.maps.buckets)

	var leafIDs []string
	leafIDs = append(leafIDs, mapIDs...)
	s.routes.buckets = make(map[string][]Route, len(mapIDs))
	s.configurations.buckets = make(map[string][]Configuration, len(mapIDs))
	for _, id := range mapIDs {
		rs := keep(snap.Routes[id], seen, &rep)
		s.routes.buckets[id] = rs
		for _, r := range rs {
			leafIDs = append(leafIDs, r.ID)
		}
		rep.Routes += len(rs)

		cs := keep(snap.Configurations[id], seen, &rep)
		s.configurations.buckets[id] = cs
		for _, c := range cs {
			leafIDs = append(leafIDs, c.ID)
		}
		rep.Configurations += len(cs)
	}
	rep.Orphans += orphanBuckets(snap.Routes, s.routes.buckets)
	rep.Orphans += orphanBuckets(snap.Configurations, s.configurations.buckets)

	s.scores.buckets = make(map[string][]leaderboard.Entry, len(leafIDs))
	for _, id := range leafIDs {
		s.scores.buckets[id] = leaderboard.Normalize(snap.Scores[id])
	}
	rep.ScoreLists = len(leafIDs)
	rep.Orphans += orphanBuckets(snap.Scores, s.scores.buckets)

	s.version.Add(1)
	return rep
}

// keep copies the entities of one bucket. Entities reusing an id seen
// anywhere in the store, or a name already taken by an earlier sibling, are
// dropped and counted as orphans; so are their children, whose buckets no
// longer have an owner.
func keep[T record[T]](in []T, seen map[string]bool, rep *RestoreReport) []T {
	out := make([]T, 0, len(in))
	names := make(map[string]bool, len(in))
	for _, v := range in {
		id, name := v.key(), v.label()
		if id == "" || seen[id] || (name != "" && names[name]) {
			rep.Orphans++
			continue
		}
		seen[id] = true
		if name != "" {
			names[name] = true
		}
		out = append(out, v.clone())
	}
	return out
}

func orphanBuckets[T any](in map[string][]T, kept map[string][]T) int {
	n := 0
	for k := range in {
		if _, ok := kept[k]; !ok {
			n++
		}
	}
	return n
}
