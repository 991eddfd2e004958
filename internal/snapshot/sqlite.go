package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"example.com/parkour-leaderboard/internal/migrate"
	_ "modernc.org/sqlite"
)

type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the
// embedded migrations. ":memory:" is accepted for tests.
func OpenSQLite(ctx context.Context, path string, log *slog.Logger) (*SQLiteBackend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one connection keeps ":memory:" a single database
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate.Up(ctx, db, migrate.SQLite, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Save(ctx context.Context, name string, data []byte) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO snapshots (name, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, name, data, time.Now().UTC().UnixMilli())
	return err
}

func (b *SQLiteBackend) Load(ctx context.Context, name string) ([]byte, bool, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
