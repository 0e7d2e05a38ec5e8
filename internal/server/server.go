// Package server provides the HTTP API for egaku.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/egaku/internal/config"
	"github.com/hyperjump/egaku/internal/keyword"
	"github.com/hyperjump/egaku/internal/match"
	"github.com/hyperjump/egaku/internal/storage"
	"go.uber.org/zap"
)

// Server is the HTTP server for the egaku API.
type Server struct {
	service *match.Service
	storage storage.Storage
	catalog keyword.Catalog
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies. db and catalog may be nil, in which
// case drawings live only in the service's library store and name search is unavailable.
func NewServer(
	service *match.Service,
	db storage.Storage,
	catalog keyword.Catalog,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return &Server{
		service: service,
		storage: db,
		catalog: catalog,
		config:  cfg,
		logger:  logger,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/match", s.handleMatch)
		r.Post("/rank", s.handleRank)
		r.Get("/drawings", s.handleListDrawings)
		r.Post("/drawings", s.handlePutDrawing)
		r.Get("/drawings/{name}", s.handleGetDrawing)
		r.Delete("/drawings/{name}", s.handleDeleteDrawing)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	r := chi.NewRouter()
	if s.config.Debug {
		r.Use(middleware.Logger)
	}
	r.Mount("/", s.Handler())

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           r,
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
