package httpapi

import (
	"context"
	"net/http"
	"strings"

	"example.com/parkour-leaderboard/internal/auth"
)

type ctxKey string

const clientKey ctxKey = "client"

// SecretHeader carries the shared API secret.
const SecretHeader = "authentication"

// secretClient names callers that used the shared secret instead of a token.
const secretClient = "shared-secret"

// AuthMiddleware accepts either the shared secret header or a bearer token
// issued by POST /v1/tokens.
func AuthMiddleware(svc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v := r.Header.Get(SecretHeader); v != "" {
				if !svc.CheckSecret(v) {
					writeError(w, http.StatusUnauthorized, "unauthorized", "invalid secret")
					return
				}
				next.ServeHTTP(w, withClient(r, secretClient))
				return
			}

			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing credentials")
				return
			}
			claims, err := svc.Verify(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}
			next.ServeHTTP(w, withClient(r, claims.Client))
		})
	}
}

// SecretOnly accepts the shared secret header and nothing else.
func SecretOnly(svc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !svc.CheckSecret(r.Header.Get(SecretHeader)) {
				writeError(w, http.StatusUnauthorized, "unauthorized", "shared secret required")
				return
			}
			next.ServeHTTP(w, withClient(r, secretClient))
		})
	}
}

func withClient(r *http.Request, client string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), clientKey, client))
}

func ClientFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(clientKey)
	s, ok := v.(string)
	return s, ok
}
