package server

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// tokenAuth checks a bearer token against a bcrypt hash. Browsers cannot set
// headers on websocket upgrades, so a token query parameter is accepted too.
type tokenAuth struct {
	hash []byte
}

func newTokenAuth(hash string) *tokenAuth {
	if hash == "" {
		return &tokenAuth{}
	}
	return &tokenAuth{hash: []byte(hash)}
}

func (a *tokenAuth) wrap(next http.Handler) http.Handler {
	if len(a.hash) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" || bcrypt.CompareHashAndPassword(a.hash, []byte(token)) != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="netwatch"`)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// HashToken returns the bcrypt hash to place in server.token_hash.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
