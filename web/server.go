package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/webalive/deployer/config"
)

// shutdownTimeout bounds how long in-flight requests may take to finish
// once shutdown starts. Deployments abort between phases when their
// request context dies, so they fit inside this window.
const shutdownTimeout = 30 * time.Second

// Server runs the JSON API over one http.Server with graceful shutdown.
type Server struct {
	httpServer *http.Server
}

func NewServer(cfg *config.Config, handlers *SiteHandlers) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	handlers.RegisterRoutes(r)

	address := fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.HTTPPort)
	return &Server{
		httpServer: &http.Server{
			Addr:    address,
			Handler: r,
		},
	}
}

// Addr returns the listen address the server was configured with.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run serves until ctx is cancelled, then drains in-flight requests. The
// error reports a failed listen or an incomplete drain; a clean shutdown
// returns nil.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		slog.Info("API server starting", "address", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("API server shutdown failed: %w", err)
	}

	slog.Info("API server stopped")
	return nil
}
