// Package server exposes the overlay operations over an HTTP JSON API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/areal-labs/overlay-cli/internal/config"
	"github.com/areal-labs/overlay-cli/internal/overlay"
	"github.com/areal-labs/overlay-cli/internal/store"
)

// Server serves the overlay HTTP API. The run store is optional; when nil,
// runs are not recorded.
type Server struct {
	cfg   config.ServerConfig
	prov  overlay.Provider
	store store.Store
}

func New(cfg config.ServerConfig, st store.Store) *Server {
	return &Server{cfg: cfg, prov: overlay.Planar{}, store: st}
}

// Router builds the chi handler with middleware and all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if s.cfg.RatePerSec > 0 {
		r.Use(rateLimit(newClientLimiter(s.cfg.RatePerSec, s.cfg.RateBurst)))
	}

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/interpolate", s.handleInterpolate)
		r.Post("/join", s.handleJoin)
		r.Post("/aggregate", s.handleAggregate)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
	})

	return r
}

// Run starts the server and blocks until ctx is cancelled or listen fails.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		grace := time.Duration(s.cfg.ShutdownGraceSecs) * time.Second
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", s.cfg.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}
