// Package server exposes the CRUD engine and metadata cache as a JSON API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/koustreak/tabula/internal/app"
	"github.com/koustreak/tabula/internal/config"
	"github.com/koustreak/tabula/internal/logger"
)

// Server is the HTTP front end of an App.
type Server struct {
	app    *app.App
	cfg    config.ServerConfig
	log    *logger.Logger
	router *chi.Mux
}

// New builds the router for a. It does not start listening.
func New(a *app.App, cfg config.ServerConfig, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{app: a, cfg: cfg, log: log, router: chi.NewRouter()}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(requestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/tables", s.handleListTables)
		r.Route("/tables/{table}", func(r chi.Router) {
			r.Get("/", s.handleDescribeTable)
			r.Get("/form", s.handleForm)
			r.Get("/rows", s.handleListRows)
			r.Post("/rows", s.handleCreateRow)
			r.Get("/rows/{pk}", s.handleGetRow)
			r.Put("/rows/{pk}", s.handleUpdateRow)
			r.Delete("/rows/{pk}", s.handleDeleteRow)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/refresh", s.handleRefreshAll)
			r.Post("/tables/{table}/refresh", s.handleRefreshTable)
			r.Post("/invalidate", s.handleInvalidate)
			r.Get("/databases", s.handleListDatabases)
			r.Post("/databases/{name}/load", s.handleLoadDatabase)
		})
	})
}

// ServeHTTP lets the server be used as a plain http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens on the configured address until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.With().Str("addr", s.cfg.Addr).Logger().Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.log.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}
