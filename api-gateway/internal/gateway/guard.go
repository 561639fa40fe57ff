package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// SessionValidator reports whether a request carries a valid session.
type SessionValidator func(r *http.Request) bool

// Guard rejects requests the validator does not accept with 401. A nil
// validator lets everything through.
func Guard(valid SessionValidator) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if valid == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || valid(r) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="smartbill"`)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		})
	}
}

// BearerTokens accepts "Authorization: Bearer <token>" for any of tokens.
// It returns nil for an empty list, which disables the guard.
func BearerTokens(tokens []string) SessionValidator {
	accepted := make([][]byte, 0, len(tokens))
	for _, token := range tokens {
		if token = strings.TrimSpace(token); token != "" {
			accepted = append(accepted, []byte(token))
		}
	}
	if len(accepted) == 0 {
		return nil
	}

	return func(r *http.Request) bool {
		scheme, presented, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return false
		}
		candidate := []byte(strings.TrimSpace(presented))
		for _, token := range accepted {
			if subtle.ConstantTimeCompare(candidate, token) == 1 {
				return true
			}
		}
		return false
	}
}
