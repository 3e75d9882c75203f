package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aurapalm/aura/internal/config"
)

const shutdownGrace = 30 * time.Second

type Server struct {
	httpServer *http.Server
	hooks      []func(context.Context)
}

// New builds the HTTP server. WriteTimeout leaves room for the palm
// completion call on top of database work.
func New(cfg config.ServerConfig, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      45 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// OnShutdown registers a hook run after in-flight requests have drained.
// Hooks run in reverse registration order.
func (s *Server) OnShutdown(fn func(context.Context)) {
	s.hooks = append(s.hooks, fn)
}

// Run serves until ctx is cancelled or the listener fails, then drains.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("shutting down server", "reason", context.Cause(ctx))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	for i := len(s.hooks) - 1; i >= 0; i-- {
		s.hooks[i](shutdownCtx)
	}
	if err != nil {
		return fmt.Errorf("draining http server: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
