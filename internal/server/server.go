// Package server provides the HTTP API for Kanren.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/kanren/internal/config"
	"github.com/hyperjump/kanren/internal/keyword"
	"github.com/hyperjump/kanren/internal/pipeline"
	"github.com/hyperjump/kanren/internal/progress"
	"github.com/hyperjump/kanren/internal/relations"
	"github.com/hyperjump/kanren/internal/storage"
	"github.com/hyperjump/kanren/pkg/utils"
)

// WatchService exposes the inbox watcher to the API.
type WatchService interface {
	Roots() []string
}

// Deps are the components the API serves. Pipeline, Keywords, Broker and Watch may be nil; their
// endpoints then answer 503.
type Deps struct {
	Store     storage.Storage
	Relations *relations.Store
	Pipeline  *pipeline.Pipeline
	Keywords  keyword.KeywordIndex
	Broker    progress.Broker
	Watch     WatchService
	// Backends names the configured implementation of each capability, for /api/v1/status.
	Backends map[string]string
	// DiskPaths lists the on-disk artifacts whose size /api/v1/status reports.
	DiskPaths map[string]string
}

// Server is the HTTP server for the Kanren API.
type Server struct {
	deps   Deps
	config *config.ServerConfig
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(deps Deps, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{
		deps:   deps,
		config: cfg,
		logger: utils.OrNop(logger),
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.With(middleware.Logger).Get("/api/v1/status", s.handleStatus)

	r.Route("/api/v1/videos/{id}", func(r chi.Router) {
		r.Use(s.validateVideoID)

		// Event streams are long-lived, so they skip the timeout and compression.
		r.Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Logger)
			r.Use(middleware.Timeout(60 * time.Second))
			r.Use(middleware.Compress(5))

			r.Put("/scenes", s.handlePutScenes)
			r.Get("/scenes", s.handleGetScenes)
			r.Put("/transcript", s.handlePutTranscript)

			r.Post("/ocr", s.handleStartOCR)
			r.Get("/ocr", s.handleGetOCR)
			r.Get("/ocr/status", s.handleOCRStatus)
			r.Get("/ocr/match", s.handleOCRMatch)

			r.Post("/relationships", s.handleComputeRelationships)
			r.Get("/relationships", s.handleGetRelationships)
			r.Get("/relationships/status", s.handleRelationshipStatus)

			r.Get("/transcript/{index}/ocr", s.handleTranscriptOCR)
			r.Get("/transcript/{index}/scenes", s.handleTranscriptScenes)

			r.Get("/search", s.handleSearch)
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
