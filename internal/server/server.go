// Package server implements the HTTP API, middleware, and websocket push for the status cache.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/woozymasta/pitwall/internal/config"
)

// New creates a new Server instance with the provided status cache, database and configuration.
// The hub is optional; without it the websocket route answers 404.
func New(status StatusSource, db Pinger, hub *Hub, cfg *config.Config) *Server {
	return &Server{
		status:       status,
		db:           db,
		hub:          hub,
		authToken:    cfg.Server.AuthToken,
		trustProxy:   cfg.Server.TrustProxy,
		refreshCount: cfg.RateLimit.RefreshCount,
		refreshWin:   cfg.RateLimit.RefreshWin,
	}
}

// Run configures the HTTP routes and returns the main handler.
func (s *Server) Run() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /api/servers/status", http.HandlerFunc(s.handleStatusList))
	mux.Handle("GET /api/servers/status/stats", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleCacheStats)))
	mux.Handle("GET /api/servers/status/ws", http.HandlerFunc(s.handleWebSocket))
	mux.Handle("GET /api/servers/{id}/status", http.HandlerFunc(s.handleServerStatus))
	mux.Handle("POST /api/servers/{id}/status/refresh",
		AdminAuthMiddleware(s.authToken, s.RateLimitMiddleware(http.HandlerFunc(s.handleForceRefresh))))

	mux.Handle("GET /api/health", http.HandlerFunc(s.handleHealth))
	mux.Handle("GET /api/version", http.HandlerFunc(s.handleVersion))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s.LoggingMiddleware(mux)
}
