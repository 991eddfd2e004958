package httpapi

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"

	"example.com/parkour-leaderboard/internal/leaderboard"
	"example.com/parkour-leaderboard/internal/store"
)

//go:embed templates/*.html
var templates embed.FS

var scoreboardTmpl = template.Must(template.ParseFS(templates, "templates/scoreboard.html"))

type scoreboardPage struct {
	ID        string
	Standings []leaderboard.Standing
}

// Scoreboard renders the standings of one leaderboard as HTML.
func (a *API) Scoreboard(w http.ResponseWriter, r *http.Request) {
	a.renderScoreboard(w, r, r.PathValue("id"))
}

func (a *API) DefaultScoreboard(w http.ResponseWriter, r *http.Request) {
	a.renderScoreboard(w, r, a.DefaultBoard)
}

func (a *API) renderScoreboard(w http.ResponseWriter, r *http.Request, id string) {
	scores, err := a.Store.Scores(id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "leaderboard not found", http.StatusNotFound)
		return
	}
	if err != nil {
		a.log().Error("scoreboard", "leaderboard", id, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := scoreboardTmpl.Execute(&buf, scoreboardPage{ID: id, Standings: leaderboard.Standings(scores)}); err != nil {
		a.log().Error("render scoreboard", "leaderboard", id, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
