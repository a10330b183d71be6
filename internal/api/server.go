// Package api serves the scanner over HTTP: form uploads, progress polling
// and results.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ironsheep/form-scanner/internal/config"
	"github.com/ironsheep/form-scanner/internal/pipeline"
	"github.com/ironsheep/form-scanner/internal/store"
)

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	proc    *pipeline.Processor
	results store.Store
	log     *slog.Logger
	cfg     config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(proc *pipeline.Processor, results store.Store, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		proc:    proc,
		results: results,
		log:     log,
		cfg:     cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/forms", s.handleSubmit)
		r.Get("/forms/{formID}/done", s.handleDone)
		r.Get("/forms/{formID}/wait", s.handleWait)
		r.Get("/status", s.handleStatus)
		r.Get("/results/{formID}", s.handleResult)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	docs, pages := s.proc.QueueDepth()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"queued_forms": docs,
		"queued_pages": pages,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}
