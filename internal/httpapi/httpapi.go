// Package httpapi is the admin-only HTTP surface (spec §6 "External
// Interfaces": health and metrics, not a control-plane RPC surface). It
// mirrors the teacher's internal/http server/middleware stack: a chi
// router wrapped in huma for typed operations, request-ID/logging/
// recovery/CORS middleware, serving a narrow, read-only set of routes
// in front of a control.Plane.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/retrovue/air/internal/control"
	airmiddleware "github.com/retrovue/air/internal/http/middleware"
)

// Plane is the dependency httpapi's handlers read from: an alias of the
// full control.Plane interface.
type Plane = control.Plane

// Config holds admin HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server is the admin HTTP server: /health and /metrics only.
type Server struct {
	cfg        Config
	router     *chi.Mux
	api        huma.API
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates an admin Server exposing health and metrics for plane.
// version is surfaced in both the OpenAPI document and the health payload.
func New(cfg Config, plane Plane, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = "dev"
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RealIP)
	router.Use(airmiddleware.RequestID)
	router.Use(airmiddleware.NewLoggingMiddleware(logger))
	router.Use(airmiddleware.Recovery(logger))
	router.Use(airmiddleware.CORS())

	humaConfig := huma.DefaultConfig("air admin API", version)
	humaConfig.Info.Description = "Health and metrics for the air playout engine. Not a control-plane RPC surface."
	humaConfig.DocsPath = "/docs"

	api := humachi.New(router, humaConfig)

	h := &healthHandler{plane: plane, version: version, startedAt: time.Now()}
	m := &metricsHandler{plane: plane}
	h.register(api)
	m.register(api)

	return &Server{cfg: cfg, router: router, api: api, logger: logger}
}

// Router exposes the chi router, e.g. for tests driving requests directly.
func (s *Server) Router() *chi.Mux { return s.router }

// ListenAndServe starts the server and blocks until ctx is cancelled, then
// gracefully shuts down within cfg.ShutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("admin HTTP server listening", slog.String("address", addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
