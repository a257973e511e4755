package httpapi

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterOptions carries the settings the router needs from config.
type RouterOptions struct {
	SecretKey      []byte
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter wires the sync endpoints. Everything under /api/shift
// requires a valid Bearer token and is rate limited per client IP.
func NewRouter(h *Handler, opts RouterOptions) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Get("/api/health", h.HandleHealth)

	r.Group(func(r chi.Router) {
		r.Use(RateLimit(opts.RateLimitRPS, opts.RateLimitBurst))
		r.Use(JWTAuth(opts.SecretKey))

		r.Post("/api/shift/open", h.HandleOpen)
		r.Post("/api/shift/close", h.HandleClose)
		r.Get("/api/shift/status", h.HandleStatus)
	})

	return r
}
