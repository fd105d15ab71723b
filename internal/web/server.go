// Package web provides the HTTP API and pages for bulk student uploads.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lekhnak/uc-pathways-hub-sub000/internal/config"
	"github.com/lekhnak/uc-pathways-hub-sub000/internal/ingest"
	mw "github.com/lekhnak/uc-pathways-hub-sub000/internal/web/middleware"
)

// Server is the HTTP server for the ingest service.
type Server struct {
	service *ingest.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server

	general *ipRateLimiter
	uploads *ipRateLimiter
}

// NewServer creates a Server with all routes registered.
func NewServer(service *ingest.Service, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	if cfg.Rate.Enabled {
		s.general = newIPRateLimiter(cfg.Rate.RequestsPerMinute)
		s.uploads = newIPRateLimiter(cfg.Rate.UploadLimit)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)
	if s.general != nil {
		s.router.Use(s.general.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	// Pages
	s.router.With(mw.APIKeyAuth(s.cfg.Security)).Get("/uploads/{uploadID}", s.handleUploadLogPage)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(s.cfg.Security))
		r.Use(mw.Operator(s.cfg.Security.OperatorHeader))

		// Short synchronous calls
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

			r.Post("/parse", s.handleParse)
			r.Post("/mapping/suggest", s.handleSuggestMapping)
			r.Post("/mapping/assign", s.handleAssignMapping)

			r.Get("/upload-logs", s.handleListUploadLogs)
			r.Get("/upload-logs/{id}", s.handleGetUploadLog)
		})

		// Upload jobs
		r.Group(func(r chi.Router) {
			if s.uploads != nil {
				r.Use(s.uploads.middleware)
			}
			r.Post("/uploads", s.handleStartUpload)
		})
		r.Get("/uploads/{uploadID}/progress", s.handleUploadProgress)
		r.Get("/uploads/{uploadID}/result", s.handleUploadResult)
		r.Get("/uploads/{uploadID}/errors.csv", s.handleExportErrors)
		r.Delete("/uploads/{uploadID}", s.handleCancelUpload)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout, // 0 keeps SSE streams open
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and the rate limiter sweepers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.general.Stop()
	s.uploads.Stop()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"uploads": s.service.Limiter().Status(),
	})
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are only logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
