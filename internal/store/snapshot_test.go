package store

import (
	"encoding/json"
	"testing"

	"example.com/parkour-leaderboard/internal/leaderboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populated(t *testing.T) (*Store, string, string) {
	t.Helper()
	s := New()
	ev, err := s.CreateEvent(Event{Name: "Cup"})
	require.NoError(t, err)
	m, err := s.CreateMap(ev.ID, Map{Name: "Canyon"})
	require.NoError(t, err)
	r, err := s.CreateRoute(m.ID, Route{Name: "Sprint", Layout: Layout{"checkpoints": json.RawMessage(`[[0,0,0]]`)}})
	require.NoError(t, err)
	_, err = s.CreateConfiguration(m.ID, Configuration{Name: "night"})
	require.NoError(t, err)
	_, err = s.SubmitScore(r.ID, leaderboard.Entry{Name: "alice", Time: 12})
	require.NoError(t, err)
	return s, m.ID, r.ID
}

func TestSnapshot_RestoreRoundTrip(t *testing.T) {
	src, _, routeID := populated(t)
	snap := src.Snapshot()

	dst := New()
	rep := dst.Restore(snap)
	assert.Equal(t, RestoreReport{Events: 1, Maps: 1, Routes: 1, Configurations: 1, ScoreLists: 3}, rep)

	got := dst.Snapshot()
	assert.Equal(t, snap.Events, got.Events)
	assert.Equal(t, snap.Maps, got.Maps)
	assert.Equal(t, snap.Routes, got.Routes)
	assert.Equal(t, snap.Configurations, got.Configurations)
	assert.Equal(t, snap.Scores, got.Scores)

	scores, err := dst.Scores(routeID)
	require.NoError(t, err)
	assert.Equal(t, []leaderboard.Entry{{Name: "alice", Time: 12}}, scores)
}

func TestSnapshot_IsIsolatedFromLaterWrites(t *testing.T) {
	s, _, routeID := populated(t)
	snap := s.Snapshot()

	_, err := s.SubmitScore(routeID, leaderboard.Entry{Name: "bob", Time: 5})
	require.NoError(t, err)

	assert.Len(t, snap.Scores[routeID], 1)
	assert.Greater(t, s.Version(), snap.Version)
}

func TestRestore_DropsOrphansAndOpensMissingBuckets(t *testing.T) {
	snap := Snapshot{
		Events: []Event{{ID: "e1", Name: "Cup"}},
		Maps: map[string][]Map{
			"e1":    {{ID: "m1", Name: "Canyon"}},
			"ghost": {{ID: "m9", Name: "Lost"}},
		},
		Routes: map[string][]Route{
			"m1": {{ID: "r1", Name: "Sprint"}},
		},
		Scores: map[string][]leaderboard.Entry{
			"r1": {{Name: "bob", Time: 9}, {Name: "alice", Time: 3}, {Name: "bob", Time: 2}},
			"zz": {{Name: "x", Time: 1}},
		},
	}

	s := New()
	rep := s.Restore(snap)
	assert.Equal(t, 2, rep.Orphans)
	assert.Equal(t, 1, rep.Maps)

	_, err := s.Maps("ghost")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Scores("zz")
	require.ErrorIs(t, err, ErrNotFound)

	configs, err := s.Configurations("m1")
	require.NoError(t, err)
	assert.Empty(t, configs)
	mapScores, err := s.Scores("m1")
	require.NoError(t, err)
	assert.Empty(t, mapScores)

	scores, err := s.Scores("r1")
	require.NoError(t, err)
	assert.Equal(t, []leaderboard.Entry{{Name: "bob", Time: 2}, {Name: "alice", Time: 3}}, scores)
}

func TestRestore_SkipsDuplicateIDs(t *testing.T) {
	snap := Snapshot{
		Events: []Event{{ID: "e1", Name: "Cup"}, {ID: "e1", Name: "Again"}},
		Maps: map[string][]Map{
			"e1": {{ID: "m1", Name: "Canyon"}, {ID: "e1", Name: "Clash"}},
		},
	}
	s := New()
	rep := s.Restore(snap)
	assert.Equal(t, 1, rep.Events)
	assert.Equal(t, 1, rep.Maps)
	assert.Equal(t, 2, rep.Orphans)
}

func TestRestore_DropsLaterSiblingsWithTakenNames(t *testing.T) {
	snap := Snapshot{
		Events: []Event{{ID: "e1", Name: "Cup"}, {ID: "e2", Name: "Cup"}},
		Maps: map[string][]Map{
			"e1": {{ID: "m1", Name: "Canyon"}, {ID: "m2", Name: "Canyon"}},
			"e2": {{ID: "m3", Name: "Canyon"}},
		},
		Routes: map[string][]Route{
			"m1": {{ID: "r1", Name: "Sprint"}},
			"m2": {{ID: "r2", Name: "Sprint"}},
		},
		Configurations: map[string][]Configuration{
			"m1": {{ID: "c1"}, {ID: "c2"}},
		},
		Scores: map[string][]leaderboard.Entry{
			"r1": {{Name: "alice", Time: 3}},
			"r2": {{Name: "bob", Time: 2}},
		},
	}

	s := New()
	rep := s.Restore(snap)
	assert.Equal(t, 1, rep.Events)
	assert.Equal(t, 1, rep.Maps)
	assert.Equal(t, 1, rep.Routes)
	assert.Equal(t, 2, rep.Configurations, "unnamed configurations never collide")
	// e2 and m2 themselves, then the buckets they owned: maps[e2], routes[m2], scores[r2]
	assert.Equal(t, 5, rep.Orphans)

	maps, err := s.Maps("e1")
	require.NoError(t, err)
	require.Len(t, maps, 1)
	assert.Equal(t, "m1", maps[0].ID)
	_, err = s.Scores("r2")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.CreateMap("e1", Map{Name: "Canyon"})
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestRestore_AllowsFurtherCreates(t *testing.T) {
	src, mapID, _ := populated(t)
	dst := New()
	dst.Restore(src.Snapshot())

	_, err := dst.CreateRoute(mapID, Route{Name: "Sprint"})
	require.ErrorIs(t, err, ErrAlreadyExists)

	r, err := dst.CreateRoute(mapID, Route{Name: "Marathon"})
	require.NoError(t, err)
	_, err = dst.Scores(r.ID)
	require.NoError(t, err)
}
