// Package middleware provides HTTP middleware for the chat server.
package middleware

import "net/http"

// CORS returns middleware that handles CORS headers for the chat API.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				if match, explicit := matchOrigin(allowedOrigins, origin); match {
					h := w.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
					h.Set("Access-Control-Allow-Headers", "Content-Type")
					h.Add("Vary", "Origin")
					// Credentials only for explicitly listed origins, never for a wildcard echo.
					if explicit {
						h.Set("Access-Control-Allow-Credentials", "true")
					}
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func matchOrigin(allowed []string, origin string) (match, explicit bool) {
	for _, o := range allowed {
		if o == origin {
			return true, true
		}
		if o == "*" {
			match = true
		}
	}
	return match, false
}
