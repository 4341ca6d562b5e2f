package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Keys guards the API. Read keys open GET routes, write keys open every
// route. An empty set disables the corresponding check.
type Keys struct {
	Read  []string
	Write []string
}

func presentedKey(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func member(given string, set []string) bool {
	if given == "" {
		return false
	}
	for _, k := range set {
		if subtle.ConstantTimeCompare([]byte(k), []byte(given)) == 1 {
			return true
		}
	}
	return false
}

func deny(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}

// RequireRead admits read or write keys. With no keys configured at all the
// API is open.
func RequireRead(keys Keys) func(http.Handler) http.Handler {
	open := len(keys.Read) == 0 && len(keys.Write) == 0
	return func(next http.Handler) http.Handler {
		if open {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := presentedKey(r)
			if member(k, keys.Read) || member(k, keys.Write) {
				next.ServeHTTP(w, r)
				return
			}
			deny(w, http.StatusUnauthorized, "unauthorized")
		})
	}
}

// RequireWrite admits write keys only; open when none are configured.
func RequireWrite(keys Keys) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(keys.Write) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if member(presentedKey(r), keys.Write) {
				next.ServeHTTP(w, r)
				return
			}
			deny(w, http.StatusForbidden, "forbidden")
		})
	}
}
