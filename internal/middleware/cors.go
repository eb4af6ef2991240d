package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS lets browsers read the cache and request id headers. authName is the
// header that carries "<scheme> <token>".
func CORS(origins []string, authName string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	allowCredentials := true
	for _, origin := range origins {
		if origin == "*" {
			allowCredentials = false
		}
	}

	handler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{authName, "Content-Type", "Cache-Control", "X-Request-ID"},
		ExposedHeaders:   []string{authName, "X-Request-ID", "X-Will-Cache", "X-Cache-Duration", "X-Cached-Value"},
		MaxAge:           3600,
		AllowCredentials: allowCredentials,
	})

	return handler.Handler
}
