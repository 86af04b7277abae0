// Package server exposes the review pipeline over HTTP: submission and
// retrieval endpoints, auth, CSV export, and a WebSocket status stream.
package server

import (
	"net/http"
	"time"

	"github.com/codecritic/codecritic/internal/auth"
	"github.com/codecritic/codecritic/internal/config"
	"github.com/codecritic/codecritic/internal/metrics"
	"github.com/codecritic/codecritic/internal/service"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
)

// Server wires the review and auth services into an http.Handler.
type Server struct {
	reviews *service.ReviewService
	auth    *auth.Service
	metrics *metrics.Collector

	statusInterval  time.Duration
	maxExportRows   int
	defaultPageSize int

	upgrader    websocket.Upgrader
	corsOrigins []string
}

// New creates the server. Zero-valued tunables fall back to the same
// defaults config.Load uses.
func New(cfg *config.Config, reviews *service.ReviewService, authSvc *auth.Service, mc *metrics.Collector) *Server {
	statusInterval := cfg.StatusInterval
	if statusInterval <= 0 {
		statusInterval = time.Second
	}
	maxExportRows := cfg.MaxExportRows
	if maxExportRows <= 0 {
		maxExportRows = 10000
	}
	pageSize := cfg.DefaultPageSize
	if pageSize <= 0 {
		pageSize = 10
	}

	return &Server{
		reviews:         reviews,
		auth:            authSvc,
		metrics:         mc,
		statusInterval:  statusInterval,
		maxExportRows:   maxExportRows,
		defaultPageSize: pageSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // browser clients connect cross-origin in dev
			},
		},
		corsOrigins: cfg.CORSOrigins,
	}
}

// Handler builds the route table. Mutating review routes accept an optional
// bearer token (anonymous submissions are allowed); /mine and /auth/me
// require one.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/reviews", s.withUser(s.handleSubmit))
	mux.HandleFunc("GET /api/reviews", s.handleList)
	mux.HandleFunc("GET /api/reviews/stats", s.handleStats)
	mux.HandleFunc("GET /api/reviews/export", s.handleExport)
	mux.HandleFunc("GET /api/reviews/mine", s.requireUser(s.handleMine))
	mux.HandleFunc("GET /api/reviews/{id}", s.handleGet)
	mux.HandleFunc("GET /api/reviews/{id}/status", s.handleStatusStream)

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/google", s.handleGoogleLogin)
	mux.HandleFunc("GET /api/auth/me", s.requireUser(s.handleMe))

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	return c.Handler(loggingMiddleware(mux))
}
