package httpapi

import (
	"errors"
	"net/http"
	"time"

	"example.com/parkour-leaderboard/internal/auth"
)

type TokenRequest struct {
	Client string `json:"client"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueToken trades the shared secret for a bearer token naming a game
// server, so the secret itself need not ship with every server build.
func (a *API) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if !a.decodeJSON(w, r, &req) {
		return
	}

	token, exp, err := a.Auth.Sign(req.Client, a.tokenTTL())
	if err != nil {
		if errors.Is(err, auth.ErrEmptyClient) {
			writeError(w, http.StatusBadRequest, "bad_request", "client is required")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "failed to sign token")
		return
	}

	a.log().Info("token issued", "client", req.Client, "expires_at", exp)
	writeJSON(w, http.StatusCreated, TokenResponse{Token: token, ExpiresAt: exp})
}

// Me reports who the request is authenticated as.
func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	client, ok := ClientFromContext(r.Context())
	if !ok || client == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing auth context")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"client": client})
}
