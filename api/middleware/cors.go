package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows the storefront web clients through. Idempotency-Key must be
// in the header allow list or browsers strip it from mutating calls.
func CORS() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins: []string{
			"http://localhost:3000",
			"https://storefront-demo.fly.dev",
		},
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	return cors.New(opts).Handler
}
