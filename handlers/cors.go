package handlers

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORSMiddleware builds the chi-native CORS middleware so the frontend
// dashboard (hosted on a different origin) can call this API. Replaces a
// hand-rolled header-setting middleware with go-chi/cors, which also
// handles preflight caching and wildcard subdomain matching correctly.
func CORSMiddleware(allowedOrigin string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{allowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		MaxAge:           300,
	})
}
