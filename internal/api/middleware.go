package api

import (
	"context"
	"net/http"
)

type contextKey string

const orgIDKey contextKey = "orgID"

// requireOrg pulls the caller's organization off the request. Resolving it
// from a staff session is out of scope here; upstream auth injects the
// header after authenticating the session.
func requireOrg(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID := r.Header.Get("X-Organization-ID")
		if orgID == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing organization"})
			return
		}
		ctx := context.WithValue(r.Context(), orgIDKey, orgID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func orgFromContext(ctx context.Context) string {
	orgID, _ := ctx.Value(orgIDKey).(string)
	return orgID
}
