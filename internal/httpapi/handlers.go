package httpapi

import (
	"net/http"

	"example.com/parkour-leaderboard/internal/leaderboard"
	"example.com/parkour-leaderboard/internal/store"
)

type CreatedResponse struct {
	ID string `json:"id"`
}

type ScoreResponse struct {
	Leaderboard string `json:"leaderboard"`
	Position    int    `json:"position"`
}

func (a *API) ListEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Store.Events())
}

func (a *API) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var e store.Event
	if !a.decodeJSON(w, r, &e) {
		return
	}
	created, err := a.Store.CreateEvent(e)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	a.log().Info("event created", "id", created.ID, "name", created.Name)
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: created.ID})
}

func (a *API) GetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := a.Store.Event(r.PathValue("id"))
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *API) EventPlayers(w http.ResponseWriter, r *http.Request) {
	n, err := a.Store.PlayerCount(r.PathValue("id"))
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"players": n})
}

func (a *API) ListMaps(w http.ResponseWriter, r *http.Request) {
	maps, err := a.Store.Maps(r.PathValue("id"))
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, maps)
}

func (a *API) CreateMap(w http.ResponseWriter, r *http.Request) {
	var m store.Map
	if !a.decodeJSON(w, r, &m) {
		return
	}
	created, err := a.Store.CreateMap(r.PathValue("id"), m)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	a.log().Info("map created", "id", created.ID, "event", r.PathValue("id"), "name", created.Name)
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: created.ID})
}

func (a *API) ListRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := a.Store.Routes(r.PathValue("id"))
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, routes)
}

func (a *API) CreateRoute(w http.ResponseWriter, r *http.Request) {
	var rt store.Route
	if !a.decodeJSON(w, r, &rt) {
		return
	}
	created, err := a.Store.CreateRoute(r.PathValue("id"), rt)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	a.log().Info("route created", "id", created.ID, "map", r.PathValue("id"), "name", created.Name)
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: created.ID})
}

func (a *API) ListConfigurations(w http.ResponseWriter, r *http.Request) {
	configs, err := a.Store.Configurations(r.PathValue("id"))
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, configs)
}

func (a *API) CreateConfiguration(w http.ResponseWriter, r *http.Request) {
	var c store.Configuration
	if !a.decodeJSON(w, r, &c) {
		return
	}
	created, err := a.Store.CreateConfiguration(r.PathValue("id"), c)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	a.log().Info("configuration created", "id", created.ID, "map", r.PathValue("id"))
	writeJSON(w, http.StatusCreated, CreatedResponse{ID: created.ID})
}

func (a *API) ListScores(w http.ResponseWriter, r *http.Request) {
	scores, err := a.Store.Scores(r.PathValue("id"))
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scores)
}

func (a *API) SubmitScore(w http.ResponseWriter, r *http.Request) {
	var e leaderboard.Entry
	if !a.decodeJSON(w, r, &e) {
		return
	}
	id := r.PathValue("id")
	scores, err := a.Store.SubmitScore(id, e)
	if err != nil {
		a.writeStoreError(w, r, err)
		return
	}

	pos := 0
	for i, s := range scores {
		if s.Name == e.Name {
			pos = i + 1
			break
		}
	}
	client, _ := ClientFromContext(r.Context())
	a.log().Debug("score accepted", "leaderboard", id, "player", e.Name, "time", e.Time, "position", pos, "client", client)
	writeJSON(w, http.StatusCreated, ScoreResponse{Leaderboard: id, Position: pos})
}

func (a *API) AllScores(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Store.AllScores())
}
