package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"example.com/parkour-leaderboard/internal/auth"
	"example.com/parkour-leaderboard/internal/config"
	"example.com/parkour-leaderboard/internal/httpapi"
	"example.com/parkour-leaderboard/internal/leaderboard"
	"example.com/parkour-leaderboard/internal/snapshot"
	"example.com/parkour-leaderboard/internal/store"
	"example.com/parkour-leaderboard/internal/ws"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg config.Config
	log *slog.Logger

	store   *store.Store
	backend snapshot.Backend
	saver   *snapshot.Manager
	hub     *ws.Hub

	srv *http.Server
}

type Options struct {
	Static http.Handler // optional; if nil, no assets are served
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger, opts Options) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	// --- Snapshot backend ---
	backend, err := openBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	// --- Store + persistence ---
	st := store.New()
	saver := snapshot.NewManager(st, backend, cfg.Snapshot.Interval, log.With("component", "snapshot"))
	if _, err := saver.Load(ctx); err != nil {
		// keep serving; the manager refuses to overwrite what it could not read
		log.Error("snapshot load incomplete", "err", err)
	}

	// --- Live standings ---
	hub := ws.New(func(id string) ([]leaderboard.Entry, uint64, bool) {
		entries, version, err := st.ScoresAt(id)
		return entries, version, err == nil
	}, log.With("component", "ws"))
	st.SetScoreListener(hub.Publish)

	api := &httpapi.API{
		Store:        st,
		Auth:         auth.NewService(cfg.Auth.Secret),
		Log:          log.With("component", "http"),
		TokenTTL:     cfg.Auth.TokenTTL,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		DefaultBoard: cfg.Scoreboard.DefaultID,
		Live:         hub,
		Assets:       opts.Static,
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	return &App{cfg: cfg, log: log, store: st, backend: backend, saver: saver, hub: hub, srv: srv}, nil
}

func openBackend(ctx context.Context, cfg config.Config, log *slog.Logger) (snapshot.Backend, error) {
	switch cfg.Snapshot.Backend {
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Addr,
			DB:   cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping (%s db=%d): %w", cfg.Redis.Addr, cfg.Redis.DB, err)
		}
		return snapshot.NewRedisBackend(rdb, cfg.Redis.Prefix, cfg.Redis.TTL), nil

	case config.BackendPostgres:
		return snapshot.OpenPostgres(ctx, cfg.Postgres.URL, log)

	case config.BackendSQLite:
		return snapshot.OpenSQLite(ctx, cfg.SQLite.Path, log)

	case config.BackendS3:
		client, err := snapshot.NewS3Client(snapshot.S3Options{
			Region:         cfg.S3.Region,
			Endpoint:       cfg.S3.Endpoint,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 session: %w", err)
		}
		return snapshot.NewS3Backend(client, cfg.S3.Bucket, cfg.S3.Prefix), nil

	default:
		return snapshot.NewFileBackend(cfg.Snapshot.Dir)
	}
}

// Handler exposes the HTTP handler, mostly for tests.
func (a *App) Handler() http.Handler {
	return a.srv.Handler
}

func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.log.Info("http server starting", "addr", a.cfg.HTTP.Addr, "snapshot_backend", a.cfg.Snapshot.Backend)

	g.Go(func() error {
		err := a.srv.ListenAndServe()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	// the saver outlives the HTTP server so its final save sees every request
	saveCtx, stopSaver := context.WithCancel(context.WithoutCancel(ctx))
	defer stopSaver()

	g.Go(func() error {
		return a.saver.Run(saveCtx)
	})

	g.Go(func() error {
		return a.hub.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		a.log.Info("http server shutting down")
		_ = a.srv.Shutdown(shutdownCtx)
		stopSaver()
		return nil
	})

	err := g.Wait()
	_ = a.Close(context.Background())
	return err
}

func (a *App) Close(ctx context.Context) error {
	if c, ok := a.backend.(snapshot.Closer); ok {
		return c.Close()
	}
	return nil
}
