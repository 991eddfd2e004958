// Package httpapi exposes the leaderboard store over HTTP.
package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"example.com/parkour-leaderboard/internal/auth"
	"example.com/parkour-leaderboard/internal/store"
)

const (
	defaultMaxBody  = 16 << 10
	defaultTokenTTL = 24 * time.Hour
)

type API struct {
	Store *store.Store
	Auth  *auth.Service
	Log   *slog.Logger

	TokenTTL     time.Duration
	MaxBodyBytes int64

	// DefaultBoard is the leaderboard shown at "/". Empty disables the page.
	DefaultBoard string
	// Live streams standings, mounted at /live/{id}. Optional.
	Live http.Handler
	// Assets serves /assets/. Optional.
	Assets http.Handler
}

// RegisterRoutes mounts the public pages and the authenticated /v1 API.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /scoreboard/{id}", a.Scoreboard)
	if a.DefaultBoard != "" {
		mux.HandleFunc("GET /{$}", a.DefaultScoreboard)
	}
	if a.Live != nil {
		mux.Handle("GET /live/{id}", a.Live)
	}
	if a.Assets != nil {
		mux.Handle("GET /assets/", http.StripPrefix("/assets/", a.Assets))
	}

	authed := AuthMiddleware(a.Auth)
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, authed(h))
	}

	mux.Handle("POST /v1/tokens", SecretOnly(a.Auth)(http.HandlerFunc(a.IssueToken)))
	handle("GET /v1/me", a.Me)

	handle("GET /v1/events", a.ListEvents)
	handle("POST /v1/events", a.CreateEvent)
	handle("GET /v1/events/{id}", a.GetEvent)
	handle("GET /v1/events/{id}/players", a.EventPlayers)

	handle("GET /v1/events/{id}/maps", a.ListMaps)
	handle("POST /v1/events/{id}/maps", a.CreateMap)

	handle("GET /v1/maps/{id}/routes", a.ListRoutes)
	handle("POST /v1/maps/{id}/routes", a.CreateRoute)
	handle("GET /v1/maps/{id}/configurations", a.ListConfigurations)
	handle("POST /v1/maps/{id}/configurations", a.CreateConfiguration)

	for segment, kind := range scoreKinds {
		handle("GET /v1/"+segment+"/{id}/scores", a.ofKind(kind, a.ListScores))
		handle("POST /v1/"+segment+"/{id}/scores", a.ofKind(kind, a.SubmitScore))
	}
	handle("GET /v1/scores", a.AllScores)
}

var scoreKinds = map[string]store.Kind{
	"maps":           store.KindMap,
	"routes":         store.KindRoute,
	"configurations": store.KindConfiguration,
}

// ofKind answers 404 unless {id} names a leaderboard owned by a kind entity.
func (a *API) ofKind(kind store.Kind, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if got, ok := a.Store.KindOf(id); !ok || got != kind {
			writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("%s %q: not found", kind, id))
			return
		}
		next(w, r)
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	a.RegisterRoutes(mux)
	return mux
}

func (a *API) log() *slog.Logger {
	if a.Log == nil {
		return slog.Default()
	}
	return a.Log
}

func (a *API) maxBody() int64 {
	if a.MaxBodyBytes <= 0 {
		return defaultMaxBody
	}
	return a.MaxBodyBytes
}

func (a *API) tokenTTL() time.Duration {
	if a.TokenTTL <= 0 {
		return defaultTokenTTL
	}
	return a.TokenTTL
}
