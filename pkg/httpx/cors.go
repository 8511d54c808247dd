package httpx

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORSConfig describes which browser origins may call the portal.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
	MaxAge           int // seconds
}

// CORS returns a middleware answering preflights and decorating responses
// for the configured origins. Credentials must be allowed for the session
// cookie to travel with cross-origin XHR from the SPA.
func CORS(cfg CORSConfig) Middleware {
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 300
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           maxAge,
	})
}
