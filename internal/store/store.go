// Package store holds events, maps, routes, configurations and their score
// lists in memory, each collection behind its own reader/writer lock.
package store

import (
	"fmt"
	"sync/atomic"

	"example.com/parkour-leaderboard/internal/leaderboard"
	"github.com/google/uuid"
)

// rootKey is the single bucket holding every event.
const rootKey = ""

// ScoreListener receives every accepted score list together with the store
// version it was committed at. Versions of one list only grow, so a listener
// can drop a notification older than one it already handled.
type ScoreListener func(id string, version uint64, entries []leaderboard.Entry)

// Kind names the entity a score list belongs to.
type Kind string

const (
	KindMap           Kind = "map"
	KindRoute         Kind = "route"
	KindConfiguration Kind = "configuration"
)

type Store struct {
	events         *collection[Event]
	maps           *collection[Map]           // by event id
	routes         *collection[Route]         // by map id
	configurations *collection[Configuration] // by map id
	scores         *collection[leaderboard.Entry]

	version atomic.Uint64
	newID   func() string

	onScores atomic.Pointer[ScoreListener]
}

type Option func(*Store)

// WithIDGenerator replaces uuid v4 identifiers, mostly for tests.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

func New(opts ...Option) *Store {
	s := &Store{
		events:         newCollection(Event.clone),
		maps:           newCollection(Map.clone),
		routes:         newCollection(Route.clone),
		configurations: newCollection(Configuration.clone),
		scores:         newCollection[leaderboard.Entry](nil),
		newID:          uuid.NewString,
	}
	s.events.buckets[rootKey] = []Event{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetScoreListener registers fn to be called after every accepted score.
// fn runs outside the store's locks, so calls for one list may arrive out of
// order; the version tells them apart.
func (s *Store) SetScoreListener(fn ScoreListener) {
	s.onScores.Store(&fn)
}

// Version increases on every mutation.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

func (s *Store) CreateEvent(e Event) (Event, error) {
	return createChild(s, s.events, rootKey, e, s.maps)
}

func (s *Store) CreateMap(eventID string, m Map) (Map, error) {
	return createChild(s, s.maps, eventID, m, s.routes, s.configurations, s.scores)
}

func (s *Store) CreateRoute(mapID string, r Route) (Route, error) {
	return createChild(s, s.routes, mapID, r, s.scores)
}

func (s *Store) CreateConfiguration(mapID string, c Configuration) (Configuration, error) {
	return createChild(s, s.configurations, mapID, c, s.scores)
}

func (s *Store) Events() []Event {
	events, _ := s.events.get(rootKey)
	return events
}

func (s *Store) Event(id string) (Event, error) {
	for _, e := range s.Events() {
		if e.ID == id {
			return e, nil
		}
	}
	return Event{}, fmt.Errorf("event %q: %w", id, ErrNotFound)
}

func (s *Store) Maps(eventID string) ([]Map, error) {
	maps, ok := s.maps.get(eventID)
	if !ok {
		return nil, fmt.Errorf("event %q: %w", eventID, ErrNotFound)
	}
	return maps, nil
}

func (s *Store) Routes(mapID string) ([]Route, error) {
	routes, ok := s.routes.get(mapID)
	if !ok {
		return nil, fmt.Errorf("map %q: %w", mapID, ErrNotFound)
	}
	return routes, nil
}

func (s *Store) Configurations(mapID string) ([]Configuration, error) {
	configs, ok := s.configurations.get(mapID)
	if !ok {
		return nil, fmt.Errorf("map %q: %w", mapID, ErrNotFound)
	}
	return configs, nil
}

// Scores returns the leaderboard of a map, route or configuration.
func (s *Store) Scores(id string) ([]leaderboard.Entry, error) {
	entries, ok := s.scores.get(id)
	if !ok {
		return nil, fmt.Errorf("leaderboard %q: %w", id, ErrNotFound)
	}
	return entries, nil
}

// ScoresAt returns the leaderboard of id with the store version it was read
// at. Every later change to that list is announced with a higher version.
func (s *Store) ScoresAt(id string) ([]leaderboard.Entry, uint64, error) {
	s.scores.rlock()
	defer s.scores.runlock()
	b, ok := s.scores.buckets[id]
	if !ok {
		return nil, 0, fmt.Errorf("leaderboard %q: %w", id, ErrNotFound)
	}
	return s.scores.copyBucket(b), s.version.Load(), nil
}

// KindOf reports which entity owns the leaderboard id.
func (s *Store) KindOf(id string) (Kind, bool) {
	s.maps.rlock()
	defer s.maps.runlock()
	s.routes.rlock()
	defer s.routes.runlock()
	s.configurations.rlock()
	defer s.configurations.runlock()

	if containsID(s.maps.buckets, id) {
		return KindMap, true
	}
	if containsID(s.routes.buckets, id) {
		return KindRoute, true
	}
	if containsID(s.configurations.buckets, id) {
		return KindConfiguration, true
	}
	return "", false
}

func containsID[T record[T]](buckets map[string][]T, id string) bool {
	for _, b := range buckets {
		for _, v := range b {
			if v.key() == id {
				return true
			}
		}
	}
	return false
}

// PlayerCount returns how many distinct players have a time on any
// leaderboard of the event: its maps, their routes and configurations.
func (s *Store) PlayerCount(eventID string) (int, error) {
	s.maps.rlock()
	defer s.maps.runlock()
	s.routes.rlock()
	defer s.routes.runlock()
	s.configurations.rlock()
	defer s.configurations.runlock()
	s.scores.rlock()
	defer s.scores.runlock()

	maps, ok := s.maps.buckets[eventID]
	if !ok {
		return 0, fmt.Errorf("event %q: %w", eventID, ErrNotFound)
	}
	players := make(map[string]struct{})
	count := func(id string) {
		for _, e := range s.scores.buckets[id] {
			players[e.Name] = struct{}{}
		}
	}
	for _, m := range maps {
		count(m.ID)
		for _, r := range s.routes.buckets[m.ID] {
			count(r.ID)
		}
		for _, c := range s.configurations.buckets[m.ID] {
			count(c.ID)
		}
	}
	return len(players), nil
}

func (s *Store) AllScores() map[string][]leaderboard.Entry {
	return s.scores.list()
}

// SubmitScore merges e into the leaderboard of id and returns the new list.
// The merge runs under the scores write lock so concurrent submissions are
// never lost. leaderboard.ErrNotImproved leaves the list untouched.
func (s *Store) SubmitScore(id string, e leaderboard.Entry) ([]leaderboard.Entry, error) {
	var version uint64
	next, err := s.scores.update(id, func(cur []leaderboard.Entry) ([]leaderboard.Entry, error) {
		merged, err := leaderboard.Merge(cur, e)
		if err != nil {
			return nil, err
		}
		// taken under the lock so versions follow the order of commits
		version = s.version.Add(1)
		return merged, nil
	})
	if err != nil {
		if err == ErrNotFound {
			return nil, fmt.Errorf("leaderboard %q: %w", id, ErrNotFound)
		}
		return nil, err
	}

	if fn := s.onScores.Load(); fn != nil && *fn != nil {
		(*fn)(id, version, next)
	}
	return next, nil
}
