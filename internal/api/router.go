package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// newRouter builds the HTTP surface: the JSON API, and the WebSocket
// endpoint. Metrics and pprof live on the separate debug listener.
func (s *Server) newRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(s.rateLimiter.Middleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Get("/echoes", s.handleListEchoes)
		r.Post("/echoes", s.handleCreateEcho)
		r.Get("/stars", s.handleListStars)
		r.Get("/leaderboard", s.handleLeaderboard)
	})

	r.HandleFunc("/ws", s.hub.HandleWS)

	return r
}
