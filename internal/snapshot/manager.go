package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"example.com/parkour-leaderboard/internal/store"
)

const finalSaveTimeout = 10 * time.Second

// codec moves one collection between a store.Snapshot and its document.
type codec struct {
	name   string
	encode func(store.Snapshot) any
	decode func([]byte, *store.Snapshot) error
}

var codecs = []codec{
	{
		name:   Events,
		encode: func(s store.Snapshot) any { return s.Events },
		decode: func(b []byte, s *store.Snapshot) error { return decode(b, &s.Events) },
	},
	{
		name:   Maps,
		encode: func(s store.Snapshot) any { return s.Maps },
		decode: func(b []byte, s *store.Snapshot) error { return decode(b, &s.Maps) },
	},
	{
		name:   Routes,
		encode: func(s store.Snapshot) any { return s.Routes },
		decode: func(b []byte, s *store.Snapshot) error { return decode(b, &s.Routes) },
	},
	{
		name:   Configurations,
		encode: func(s store.Snapshot) any { return s.Configurations },
		decode: func(b []byte, s *store.Snapshot) error { return decode(b, &s.Configurations) },
	},
	{
		name:   Scores,
		encode: func(s store.Snapshot) any { return s.Scores },
		decode: func(b []byte, s *store.Snapshot) error { return decode(b, &s.Scores) },
	},
}

// decode only touches dst when b decodes completely.
func decode[T any](b []byte, dst *T) error {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*dst = v
	return nil
}

// Manager loads the store at startup and saves it on a timer.
type Manager struct {
	store    *store.Store
	backend  Backend
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time

	mu           sync.Mutex
	savedVersion uint64
	saved        bool
	// guarded is set when Load could not read a collection, or could not
	// keep a copy of one it had to drop; saving then would replace stored
	// data the process never saw.
	guarded bool
}

func NewManager(st *store.Store, b Backend, interval time.Duration, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		store:    st,
		backend:  b,
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

// Load restores every collection it can read into the store.
//
// A missing document leaves its collection empty. A document that cannot be
// read yields ErrSnapshotIO and keeps later saves from overwriting stored
// data. A document that does not decode yields ErrCorruptSnapshot; its raw
// bytes are kept under "<name>.corrupt-<unix>". When restoring drops records
// whose parent was lost, every document that did decode is kept as well,
// under "<name>.orphaned-<unix>", before the next save replaces it. If a copy
// cannot be written, saves stay blocked as for an unreadable document. The
// remaining collections are loaded either way, and every failure is returned
// joined.
func (m *Manager) Load(ctx context.Context) (store.RestoreReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		snap    store.Snapshot
		errs    []error
		blocked bool
		corrupt bool
		decoded = make(map[string][]byte)
	)
	for _, c := range codecs {
		data, found, err := m.backend.Load(ctx, c.name)
		if err != nil {
			m.log.Error("snapshot load failed", "collection", c.name, "err", err)
			errs = append(errs, fmt.Errorf("%w: load %s: %w", ErrSnapshotIO, c.name, err))
			blocked = true
			continue
		}
		if !found {
			m.log.Info("no snapshot, starting empty", "collection", c.name)
			continue
		}
		if err := c.decode(data, &snap); err != nil {
			corrupt = true
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrCorruptSnapshot, c.name, err))
			m.log.Error("corrupt snapshot", "collection", c.name, "err", err)
			if err := m.keepCopy(ctx, c.name, "corrupt", data); err != nil {
				errs = append(errs, err)
				blocked = true
			}
			continue
		}
		decoded[c.name] = data
	}

	rep := m.store.Restore(snap)
	m.log.Info("snapshot restored",
		"events", rep.Events,
		"maps", rep.Maps,
		"routes", rep.Routes,
		"configurations", rep.Configurations,
		"score_lists", rep.ScoreLists,
	)
	if rep.Orphans > 0 {
		m.log.Warn("snapshot held orphaned records", "dropped", rep.Orphans)
		for _, c := range codecs {
			data, ok := decoded[c.name]
			if !ok {
				continue
			}
			if err := m.keepCopy(ctx, c.name, "orphaned", data); err != nil {
				errs = append(errs, err)
				blocked = true
			}
		}
	}

	m.guarded = blocked
	m.saved = !blocked && !corrupt && rep.Orphans == 0
	m.savedVersion = m.store.Version()
	return rep, errors.Join(errs...)
}

// keepCopy stores data next to the collection as "<name>.<reason>-<unix>".
func (m *Manager) keepCopy(ctx context.Context, name, reason string, data []byte) error {
	cname := fmt.Sprintf("%s.%s-%d", name, reason, m.now().Unix())
	if err := m.backend.Save(ctx, cname, data); err != nil {
		m.log.Error("snapshot copy failed, saves are blocked", "collection", name, "copy", cname, "err", err)
		return fmt.Errorf("%w: keep %s: %w", ErrSnapshotIO, cname, err)
	}
	m.log.Warn("snapshot copy kept", "collection", name, "copy", cname)
	return nil
}

// Save writes every collection from one consistent store snapshot. A failure
// in one collection is logged and does not stop the others. Nothing is
// written when the store has not changed since the last complete save.
func (m *Manager) Save(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.guarded {
		return fmt.Errorf("%w: startup load was incomplete, refusing to overwrite stored snapshots", ErrSnapshotIO)
	}
	if m.saved && m.store.Version() == m.savedVersion {
		m.log.Debug("snapshot unchanged, skipping save", "version", m.savedVersion)
		return nil
	}

	snap := m.store.Snapshot()
	var errs []error
	for _, c := range codecs {
		data, err := json.Marshal(c.encode(snap))
		if err != nil {
			m.log.Error("snapshot encode failed", "collection", c.name, "err", err)
			errs = append(errs, fmt.Errorf("encode %s: %w", c.name, err))
			continue
		}
		if err := m.backend.Save(ctx, c.name, data); err != nil {
			m.log.Error("snapshot save failed", "collection", c.name, "err", err)
			errs = append(errs, fmt.Errorf("%w: save %s: %w", ErrSnapshotIO, c.name, err))
			continue
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	m.saved = true
	m.savedVersion = snap.Version
	m.log.Info("snapshot saved", "version", snap.Version)
	return nil
}

// Run saves on every tick until ctx is done, then saves once more.
func (m *Manager) Run(ctx context.Context) error {
	if m.interval <= 0 {
		return fmt.Errorf("snapshot interval must be positive, got %s", m.interval)
	}
	t := time.NewTicker(m.interval)
	defer t.Stop()

	m.log.Info("snapshot saver started", "interval", m.interval)
	for {
		select {
		case <-ctx.Done():
			fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalSaveTimeout)
			defer cancel()
			if err := m.Save(fctx); err != nil {
				m.log.Error("final snapshot save failed", "err", err)
			}
			return nil
		case <-t.C:
			// errors are logged per collection; the next tick retries
			_ = m.Save(ctx)
		}
	}
}
