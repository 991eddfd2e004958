package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"example.com/parkour-leaderboard/internal/leaderboard"
	"example.com/parkour-leaderboard/internal/store"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, errCode, msg string) {
	writeJSON(w, code, ErrorResponse{Code: errCode, Message: msg})
}

// writeStoreError maps store and merge outcomes onto HTTP statuses.
// Expected outcomes are not logged.
func (a *API) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrParentNotFound), errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, store.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already_exists", err.Error())
	case errors.Is(err, leaderboard.ErrNotImproved):
		writeError(w, http.StatusConflict, "not_improved", err.Error())
	case errors.Is(err, store.ErrInvalid), errors.Is(err, leaderboard.ErrInvalidEntry):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		a.log().Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// decodeJSON reads a size-limited JSON body into dst and answers the
// request itself when that fails.
func (a *API) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxBody())
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return false
	}
	return true
}
