// Package api is the network edge of the world server: the WebSocket gateway
// that turns client frames into engine mutations and engine ticks into
// snapshot fan-outs, plus a small JSON API for health, stats, and content.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"aura-server/internal/config"
	"aura-server/internal/store"
	"aura-server/internal/world"
)

// Server bundles the HTTP listener, the WebSocket hub, and the rate limiter.
type Server struct {
	engine      *world.Engine
	store       store.Store
	hub         *Hub
	rateLimiter *IPRateLimiter

	httpServer *http.Server
	startedAt  time.Time
}

// NewServer wires the server. The hub it creates is registered with the
// engine as the broadcaster and eviction sink.
func NewServer(engine *world.Engine, st store.Store, cfg config.ServerConfig) *Server {
	s := &Server{
		engine:      engine,
		store:       st,
		hub:         NewHub(engine, st, cfg),
		rateLimiter: NewIPRateLimiter(DefaultRateLimitConfig),
		startedAt:   time.Now(),
	}

	engine.SetBroadcaster(s.hub)
	engine.SetOnEvict(s.hub.EvictSession)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.newRouter(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // WebSocket connections are long-lived
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Router returns the HTTP handler, used by tests to mount the server on an
// httptest listener.
func (s *Server) Router() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving and blocks until the listener stops.
func (s *Server) Start() error {
	log.Printf("🚀 Server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop closes every WebSocket connection and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Shutdown()
	s.rateLimiter.Stop()
	return s.httpServer.Shutdown(ctx)
}
