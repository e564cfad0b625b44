// Package api exposes scoring and scenario runs over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// ServerConfig holds listener and throttling settings.
type ServerConfig struct {
	Port               int
	CORSOrigins        []string
	ScenarioRatePerSec float64
	ScenarioBurst      int
}

// Server is the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  ServerConfig
}

// NewServer wires routes and middleware around h.
func NewServer(cfg ServerConfig, h *Handler) *Server {
	router := chi.NewRouter()

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(RecoverMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "X-Cache"},
		MaxAge:         300,
	}))

	router.Get("/health", h.Health)
	router.Get("/bands/metadata", h.BandsMetadata)

	router.Post("/score", h.Score)
	router.Post("/score/breakdown", h.ScoreBreakdown)

	router.Group(func(r chi.Router) {
		if cfg.ScenarioRatePerSec > 0 {
			burst := max(cfg.ScenarioBurst, 1)
			r.Use(RateLimitMiddleware(rate.NewLimiter(rate.Limit(cfg.ScenarioRatePerSec), burst)))
		}
		r.Post("/scenarios/{type}", h.RunScenario)
	})

	router.Get("/runs", h.ListRuns)
	router.Get("/runs/{id}", h.GetRun)
	router.Get("/runs/{id}/export.zip", h.ExportRun)

	return &Server{router: router, handler: h, config: cfg}
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the chi router for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
