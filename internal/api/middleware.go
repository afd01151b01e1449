/**
 * @description
 * Request middleware for the billing service. The API is an internal
 * back-office surface: callers authenticate with a shared internal key, not
 * end-user credentials.
 */
package api

import (
	"crypto/subtle"
	"net/http"
)

// InternalKeyMiddleware guards routes with a shared X-Internal-API-Key
// header. An empty configured key disables the check (local development).
func InternalKeyMiddleware(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key != "" {
				provided := r.Header.Get("X-Internal-API-Key")
				if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
