package snapshot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"example.com/parkour-leaderboard/internal/leaderboard"
	"example.com/parkour-leaderboard/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBackend struct {
	mu       sync.Mutex
	docs     map[string][]byte
	saves    int
	failSave map[string]bool
	failLoad map[string]bool
}

func newMemBackend() *memBackend {
	return &memBackend{
		docs:     map[string][]byte{},
		failSave: map[string]bool{},
		failLoad: map[string]bool{},
	}
}

func (b *memBackend) Save(_ context.Context, name string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSave[name] {
		return errors.New("disk full")
	}
	b.saves++
	b.docs[name] = append([]byte(nil), data...)
	return nil
}

func (b *memBackend) Load(_ context.Context, name string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failLoad[name] {
		return nil, false, errors.New("permission denied")
	}
	d, ok := b.docs[name]
	return d, ok, nil
}

func (b *memBackend) saveCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New()
	ev, err := s.CreateEvent(store.Event{Name: "Spring Cup"})
	require.NoError(t, err)
	m, err := s.CreateMap(ev.ID, store.Map{Name: "Canyon", Perks: map[string]string{"jump": "2"}})
	require.NoError(t, err)
	r, err := s.CreateRoute(m.ID, store.Route{Name: "Sprint"})
	require.NoError(t, err)
	_, err = s.CreateConfiguration(m.ID, store.Configuration{Name: "night"})
	require.NoError(t, err)
	for _, e := range []leaderboard.Entry{{Name: "alice", Time: 42.5}, {Name: "bob", Time: 40}} {
		_, err = s.SubmitScore(r.ID, e)
		require.NoError(t, err)
	}
	return s
}

func requireSameState(t *testing.T, want, got store.Snapshot) {
	t.Helper()
	require.Equal(t, want.Events, got.Events)
	require.Equal(t, want.Maps, got.Maps)
	require.Equal(t, want.Routes, got.Routes)
	require.Equal(t, want.Configurations, got.Configurations)
	require.Equal(t, want.Scores, got.Scores)
}

func TestManager_SaveThenLoadIntoFreshStore(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend()
	src := seedStore(t)

	require.NoError(t, NewManager(src, b, time.Minute, discardLogger()).Save(ctx))
	for _, name := range []string{Events, Maps, Routes, Configurations, Scores} {
		assert.Contains(t, b.docs, name)
	}

	dst := store.New()
	rep, err := NewManager(dst, b, time.Minute, discardLogger()).Load(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Orphans)
	requireSameState(t, src.Snapshot(), dst.Snapshot())
}

func TestManager_LoadWithNothingStored(t *testing.T) {
	s := store.New()
	rep, err := NewManager(s, newMemBackend(), time.Minute, discardLogger()).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.RestoreReport{}, rep)
	assert.Empty(t, s.Events())
}

func TestManager_SkipsSaveWhenUnchanged(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend()
	s := seedStore(t)
	m := NewManager(s, b, time.Minute, discardLogger())

	require.NoError(t, m.Save(ctx))
	first := b.saveCount()
	require.Equal(t, 5, first)

	require.NoError(t, m.Save(ctx))
	assert.Equal(t, first, b.saveCount())

	_, err := s.CreateEvent(store.Event{Name: "Autumn Cup"})
	require.NoError(t, err)
	require.NoError(t, m.Save(ctx))
	assert.Equal(t, first+5, b.saveCount())
}

func TestManager_SaveIsolatesFailingCollection(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend()
	b.failSave[Maps] = true
	m := NewManager(seedStore(t), b, time.Minute, discardLogger())

	err := m.Save(ctx)
	require.ErrorIs(t, err, ErrSnapshotIO)
	assert.NotContains(t, b.docs, Maps)
	for _, name := range []string{Events, Routes, Configurations, Scores} {
		assert.Contains(t, b.docs, name)
	}

	// a failed save is retried even though the store did not change
	b.mu.Lock()
	b.failSave[Maps] = false
	b.mu.Unlock()
	require.NoError(t, m.Save(ctx))
	assert.Contains(t, b.docs, Maps)
}

func TestManager_CorruptCollectionIsQuarantined(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend()
	src := seedStore(t)
	require.NoError(t, NewManager(src, b, time.Minute, discardLogger()).Save(ctx))
	b.docs[Scores] = []byte(`{"not":"closed"`)

	dst := store.New()
	m := NewManager(dst, b, time.Minute, discardLogger())
	m.now = func() time.Time { return time.Unix(1700000000, 0) }

	rep, err := m.Load(ctx)
	require.ErrorIs(t, err, ErrCorruptSnapshot)
	assert.NotErrorIs(t, err, ErrSnapshotIO)
	assert.Equal(t, 1, rep.Events)
	assert.Equal(t, 1, rep.Routes)
	assert.Equal(t, []byte(`{"not":"closed"`), b.docs["scores.corrupt-1700000000"])

	// every leaf still has a score list, just empty
	for _, lists := range dst.AllScores() {
		assert.Empty(t, lists)
	}

	// the next save rewrites a clean document
	require.NoError(t, m.Save(ctx))
	again := store.New()
	_, err = NewManager(again, b, time.Minute, discardLogger()).Load(ctx)
	require.NoError(t, err)
}

func TestManager_CorruptParentKeepsDroppedChildren(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend()
	src := seedStore(t)
	require.NoError(t, NewManager(src, b, time.Minute, discardLogger()).Save(ctx))
	original := make(map[string][]byte)
	for name, data := range b.docs {
		original[name] = append([]byte(nil), data...)
	}
	b.docs[Events] = []byte(`[{"id":`)

	m := NewManager(store.New(), b, time.Minute, discardLogger())
	m.now = func() time.Time { return time.Unix(1700000000, 0) }
	rep, err := m.Load(ctx)
	require.ErrorIs(t, err, ErrCorruptSnapshot)
	assert.Zero(t, rep.Maps)
	assert.Positive(t, rep.Orphans)

	require.NoError(t, m.Save(ctx))
	assert.Equal(t, []byte(`[{"id":`), b.docs["events.corrupt-1700000000"])
	for _, name := range []string{Maps, Routes, Configurations, Scores} {
		assert.Equal(t, original[name], b.docs[name+".orphaned-1700000000"], name)
	}

	// repairing the parent document brings every time back
	repaired := newMemBackend()
	repaired.docs[Events] = original[Events]
	for _, name := range []string{Maps, Routes, Configurations, Scores} {
		repaired.docs[name] = b.docs[name+".orphaned-1700000000"]
	}
	dst := store.New()
	_, err = NewManager(dst, repaired, time.Minute, discardLogger()).Load(ctx)
	require.NoError(t, err)
	requireSameState(t, src.Snapshot(), dst.Snapshot())
}

func TestManager_FailedCopyBlocksSaves(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend()
	require.NoError(t, NewManager(seedStore(t), b, time.Minute, discardLogger()).Save(ctx))
	maps := append([]byte(nil), b.docs[Maps]...)
	b.docs[Events] = []byte(`[{"id":`)
	b.failSave["maps.orphaned-1700000000"] = true

	m := NewManager(store.New(), b, time.Minute, discardLogger())
	m.now = func() time.Time { return time.Unix(1700000000, 0) }
	_, err := m.Load(ctx)
	require.ErrorIs(t, err, ErrCorruptSnapshot)
	require.ErrorIs(t, err, ErrSnapshotIO)

	require.ErrorIs(t, m.Save(ctx), ErrSnapshotIO)
	assert.Equal(t, maps, b.docs[Maps])
}

func TestManager_UnreadableCollectionBlocksSaves(t *testing.T) {
	ctx := context.Background()
	b := newMemBackend()
	require.NoError(t, NewManager(seedStore(t), b, time.Minute, discardLogger()).Save(ctx))
	stored := append([]byte(nil), b.docs[Events]...)
	b.failLoad[Events] = true

	s := store.New()
	m := NewManager(s, b, time.Minute, discardLogger())
	_, err := m.Load(ctx)
	require.ErrorIs(t, err, ErrSnapshotIO)

	_, err = s.CreateEvent(store.Event{Name: "Replacement"})
	require.NoError(t, err)
	require.ErrorIs(t, m.Save(ctx), ErrSnapshotIO)
	assert.Equal(t, stored, b.docs[Events])
}

func TestManager_RunSavesOnTickAndOnShutdown(t *testing.T) {
	b := newMemBackend()
	s := seedStore(t)
	m := NewManager(s, b, 10*time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return b.saveCount() >= 5 }, 2*time.Second, 5*time.Millisecond)

	_, err := s.CreateEvent(store.Event{Name: "Late"})
	require.NoError(t, err)
	cancel()
	require.NoError(t, <-done)

	dst := store.New()
	_, err = NewManager(dst, b, time.Minute, discardLogger()).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, dst.Events(), 2)
}

func TestManager_RunRejectsZeroInterval(t *testing.T) {
	m := NewManager(store.New(), newMemBackend(), 0, discardLogger())
	require.Error(t, m.Run(context.Background()))
}
