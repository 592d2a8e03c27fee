package middleware

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// RequireToken gates requests on a static bearer token. With an empty token
// nothing is rejected; unauthenticated requests are only logged, matching how
// the dashboard proxy historically ran behind the platform's own auth.
func RequireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := requestToken(r)

			if token == "" {
				if presented == "" {
					log.Printf("Unauthenticated request: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
				}
				next.ServeHTTP(w, r)
				return
			}

			if presented != token {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication required"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestToken extracts the credential from the Authorization header or the
// token query parameter, in that order.
func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
