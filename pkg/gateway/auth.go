package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// authenticate verifies the shared secret on a request. The secret is
// accepted as a bearer token or, for websocket clients that cannot set
// headers, as a "token" query parameter.
func (s *Server) authenticate(r *http.Request) bool {
	if s.sharedSecret == "" {
		return true
	}

	token := ""
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimPrefix(header, "Bearer ")
	} else {
		token = r.URL.Query().Get("token")
	}

	return subtle.ConstantTimeCompare([]byte(token), []byte(s.sharedSecret)) == 1
}

// requireAuth wraps a handler with the shared-secret check.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
			return
		}
		next(w, r)
	}
}
