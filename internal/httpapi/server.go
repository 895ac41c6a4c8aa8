// Package httpapi exposes the store over a JSON HTTP API.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kittclouds/bookshelf/internal/importer"
	"github.com/kittclouds/bookshelf/internal/logger"
	"github.com/kittclouds/bookshelf/internal/metrics"
	"github.com/kittclouds/bookshelf/internal/store"
)

// Deps are the shared dependencies of the handlers.
type Deps struct {
	Store          store.Storer
	Importer       *importer.Importer
	Metrics        *metrics.Collector // nil disables /metrics
	Logger         logger.Logger
	StartTime      time.Time
	Version        string
	RequestTimeout time.Duration // 0 disables the per-request timeout
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	http   *http.Server
	logger logger.Logger
}

// NewRouter builds the router with its middlewares and every route.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.Importer == nil {
		d.Importer = importer.New(d.Store, d.Logger, importer.WithMetrics(d.Metrics))
	}
	h := &handlers{d: d, log: d.Logger.Named("http")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if d.RequestTimeout > 0 {
		r.Use(middleware.Timeout(d.RequestTimeout))
	}
	r.Use(accessLog(h.log, d.Metrics))

	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/bookmarks", h.bookmarkRoutes)
		r.Route("/collections", h.collectionRoutes)
		r.Route("/snoozes", h.snoozeRoutes)
		r.Get("/labels", h.listVocabulary)
		r.Post("/similar", h.similar)
		r.Post("/import", h.importDocument)
		r.Get("/backup", h.exportBackup)
		r.Post("/restore", h.importBackup)
	})
	return r
}

// New builds the HTTP server listening on addr.
func New(addr string, d Deps) *Server {
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	s := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return &Server{http: s, logger: d.Logger}
}

// Start runs the HTTP server (blocks until error or shutdown).
func (s *Server) Start() error {
	s.logger.Infof("HTTP server listening on %s", s.http.Addr)
	err := s.http.ListenAndServe()
	// http.ErrServerClosed is expected on graceful shutdown.
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server with the provided context deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down...")
	return s.http.Shutdown(ctx)
}

type handlers struct {
	d   Deps
	log logger.Logger
}
