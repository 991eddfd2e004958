package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql sqlite/*.sql
var migrations embed.FS

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

func (d Dialect) dir() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

// goose keeps dialect and base FS in package globals.
var mu sync.Mutex

// Up applies all pending migrations for dialect.
//
// It returns an error (no log.Fatal) so the caller can decide how to handle it.
func Up(ctx context.Context, db *sql.DB, dialect Dialect, log *slog.Logger) error {
	mu.Lock()
	defer mu.Unlock()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(string(dialect)); err != nil {
		return fmt.Errorf("migrations: set dialect: %w", err)
	}

	if log != nil {
		log.Info("running database migrations", "dialect", dialect)
	}
	if err := goose.UpContext(ctx, db, dialect.dir()); err != nil {
		return fmt.Errorf("migrations: goose up: %w", err)
	}
	if log != nil {
		log.Info("database migrations applied", "dialect", dialect)
	}
	return nil
}
