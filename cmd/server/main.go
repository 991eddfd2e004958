package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"example.com/parkour-leaderboard/internal/app"
	"example.com/parkour-leaderboard/internal/config"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}

	log := newLogger(cfg)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	static, err := webHandler()
	if err != nil {
		log.Error("web assets", "err", err)
		os.Exit(1)
	}

	a, err := app.New(ctx, cfg, log, app.Options{Static: static})
	if err != nil {
		log.Error("startup failed", "err", err)
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func newLogger(cfg config.Config) *slog.Logger {
	// Validate already rejected unknown levels
	level, _ := cfg.LogLevel()
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Log.Format == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(h).With("env", cfg.Env)
}
