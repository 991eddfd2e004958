package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"example.com/parkour-leaderboard/internal/migrate"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

type PostgresBackend struct {
	db *pgxpool.Pool
}

// OpenPostgres connects, pings and migrates the snapshots table.
func OpenPostgres(ctx context.Context, url string, log *slog.Logger) (*PostgresBackend, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	err = migrate.Up(ctx, sqlDB, migrate.Postgres, log)
	_ = sqlDB.Close()
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresBackend{db: pool}, nil
}

func (b *PostgresBackend) Save(ctx context.Context, name string, data []byte) error {
	_, err := b.db.Exec(ctx, `
		INSERT INTO snapshots (name, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`, name, data)
	return err
}

func (b *PostgresBackend) Load(ctx context.Context, name string) ([]byte, bool, error) {
	var data []byte
	err := b.db.QueryRow(ctx, `SELECT data FROM snapshots WHERE name = $1`, name).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (b *PostgresBackend) Close() error {
	b.db.Close()
	return nil
}
